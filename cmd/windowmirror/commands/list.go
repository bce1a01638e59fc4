package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/WindowMirror/internal/window"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List windows that can be mirrored",
	Long: `List all visible, non-minimized application windows.

Windows without a title, windows smaller than the configured minimum size and
WindowMirror's own windows are hidden.`,
	Example: `  # List windows in table format (default)
  windowmirror list

  # List windows in JSON format
  windowmirror list --format json`,
	RunE: runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := resolvedConfig()
	if err != nil {
		return err
	}

	registry, err := window.NewX11Registry(cfg.WindowFilter(os.Getpid()))
	if err != nil {
		return err
	}
	defer registry.Close()

	handles, err := registry.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}

	return printWindows(cmd.OutOrStdout(), handles, listFormat)
}

func printWindows(out io.Writer, handles []window.Handle, format string) error {
	switch format {
	case "json":
		if handles == nil {
			handles = []window.Handle{}
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(handles)
	case "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintln(w, "ID\tTITLE\tCLASS\tPID\tGEOMETRY")
		fmt.Fprintln(w, "--\t-----\t-----\t---\t--------")
		for _, h := range handles {
			fmt.Fprintf(w, "0x%x\t%s\t%s\t%d\t%s\n", h.ID, h.Title, h.Class, h.PID, h.Geometry)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", format)
	}
}
