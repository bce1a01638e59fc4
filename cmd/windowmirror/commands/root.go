package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/bryanchriswhite/WindowMirror/internal/config"
	"github.com/bryanchriswhite/WindowMirror/internal/logger"
)

var (
	cfgFile   string
	configMgr *config.Manager
	settings  *viper.Viper

	rootCmd = &cobra.Command{
		Use:   "windowmirror",
		Short: "WindowMirror - mirror one application window into another",
		Long: `WindowMirror captures the contents of a single application window in the
background, without focusing or raising it, and shows it live in a second
window at a fixed frame rate.

Features:
  • Pick a window by id, by exact title or interactively
  • Passive capture through the X11 Composite extension
  • Optional title bar cropping
  • 60/120/144 fps presets or any rate up to 240
  • Pause, refresh and quit from the mirror window
  • Local control API with a state event stream`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/windowmirror/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
}

// initConfig loads the config file and layers WINDOWMIRROR_* environment
// variables and command-line flags on top of it
func initConfig(cmd *cobra.Command, args []string) error {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	configMgr = mgr
	settings = mgr.Viper()

	if err := settings.BindPFlag("log_level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}

	logger.Init(settings.GetString("log_level"), term.IsTerminal(int(os.Stderr.Fd())))
	logger.WithComponent("config").Debug().
		Str("path", mgr.Path()).
		Msg("Configuration loaded")
	return nil
}

// resolvedConfig returns the configuration after env and flag overrides
func resolvedConfig() (*config.Config, error) {
	return config.FromViper(settings)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
