package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/WindowMirror/internal/api"
	"github.com/bryanchriswhite/WindowMirror/internal/capture"
	"github.com/bryanchriswhite/WindowMirror/internal/config"
	"github.com/bryanchriswhite/WindowMirror/internal/display"
	"github.com/bryanchriswhite/WindowMirror/internal/display/ebitensink"
	"github.com/bryanchriswhite/WindowMirror/internal/logger"
	"github.com/bryanchriswhite/WindowMirror/internal/session"
	"github.com/bryanchriswhite/WindowMirror/internal/window"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Mirror a window into a new window",
	Long: `Mirror captures one application window at the target frame rate and shows
it in a separate mirror window. The captured window is never focused, raised
or restacked.

Keys in the mirror window:
  p, space   pause / resume
  r          refresh once while paused
  q, Escape  quit`,
	Example: `  # Pick a window interactively and mirror it at 60 fps
  windowmirror mirror

  # Mirror a window by id at 144 fps, keeping its title bar
  windowmirror mirror --id 0x3a00007 --fps 144 --no-crop

  # Mirror by exact title into a fixed 1920x1080 window
  windowmirror mirror --title "Editor" --display fixed --width 1920 --height 1080

  # Expose the control API on 127.0.0.1:8099
  windowmirror mirror --api`,
	RunE: runMirror,
}

var (
	mirrorID     string
	mirrorTitle  string
	mirrorNoCrop bool
)

// mirrorFlags maps command-line flags to config keys
var mirrorFlags = map[string]string{
	"fps":              "fps",
	"crop":             "exclude_title_bar",
	"title-bar-height": "title_bar_height",
	"display":          "display.mode",
	"width":            "display.width",
	"height":           "display.height",
	"backend":          "display.backend",
	"scaler":           "display.scaler",
	"show-fps":         "display.show_fps",
	"miss-threshold":   "miss_threshold",
	"api":              "api.enabled",
	"api-port":         "api.port",
}

func init() {
	rootCmd.AddCommand(mirrorCmd)

	f := mirrorCmd.Flags()
	f.StringVar(&mirrorID, "id", "", "window id to mirror (hex or decimal, see 'windowmirror list')")
	f.StringVar(&mirrorTitle, "title", "", "exact title of the window to mirror")
	f.Int("fps", config.DefaultFPS, fpsUsage())
	f.Bool("crop", true, "exclude the title bar from the capture")
	f.BoolVar(&mirrorNoCrop, "no-crop", false, "capture the full window including the title bar")
	f.Int("title-bar-height", config.DefaultTitleBarHeight, "title bar height in pixels")
	f.String("display", "auto", "mirror window sizing (auto or fixed)")
	f.Int("width", 1280, "mirror window width in fixed mode")
	f.Int("height", 720, "mirror window height in fixed mode")
	f.String("backend", "x11", "mirror window backend (x11 or ebiten)")
	f.String("scaler", "nearest", "scaling filter (nearest, bilinear or catmullrom)")
	f.Bool("show-fps", false, "show the achieved frame rate in the mirror window")
	f.Int("miss-threshold", session.DefaultMissThreshold, "consecutive misses before the target counts as lost")
	f.Bool("api", false, "serve the control API on 127.0.0.1")
	f.Int("api-port", config.DefaultAPIPort, "control API port")

	mirrorCmd.MarkFlagsMutuallyExclusive("id", "title")
	mirrorCmd.MarkFlagsMutuallyExclusive("crop", "no-crop")
}

func fpsUsage() string {
	presets := make([]string, len(session.Presets))
	for i, fps := range session.Presets {
		presets[i] = strconv.Itoa(fps)
	}
	return fmt.Sprintf("target frame rate, 1-%d (presets: %s)", session.MaxFPS, strings.Join(presets, ", "))
}

func runMirror(cmd *cobra.Command, args []string) error {
	for flag, key := range mirrorFlags {
		if err := settings.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}
	if mirrorNoCrop {
		settings.Set("exclude_title_bar", false)
	}

	cfg, err := resolvedConfig()
	if err != nil {
		return err
	}

	log := logger.WithComponent("mirror")

	registry, err := window.NewX11Registry(cfg.WindowFilter(os.Getpid()))
	if err != nil {
		return err
	}
	defer registry.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target, err := chooseTarget(ctx, registry)
	if err != nil {
		return err
	}

	x11src, err := capture.NewX11Source()
	if err != nil {
		return err
	}
	defer x11src.Close()
	source := capture.Guard(x11src, cfg.Timeout())

	opts := cfg.DisplayOptions()
	opts.Title = fmt.Sprintf("WindowMirror - %s", target.Label())

	var (
		sink   display.Sink
		ebiten *ebitensink.Sink
	)
	switch cfg.Display.Backend {
	case "ebiten":
		ebiten = ebitensink.New(opts)
		sink = ebiten
	default:
		x11sink, err := display.NewX11Sink(opts)
		if err != nil {
			return err
		}
		registry.Exclude(x11sink.ID())
		sink = x11sink
	}
	defer sink.Close()

	sess, err := session.New(
		session.Deps{Registry: registry, Source: source, Sink: sink},
		session.RateConfig{FPS: cfg.FPS, Crop: cfg.Crop()},
		session.Options{MissThreshold: cfg.MissThreshold, DisplayMode: cfg.DisplayMode()},
	)
	if err != nil {
		return err
	}
	if err := sess.SelectTarget(target); err != nil {
		return err
	}

	host := session.NewHost()
	if err := host.Start(sess); err != nil {
		return err
	}
	defer host.StopAll()

	if cfg.API.Enabled {
		server := api.NewServer(registry, sess, configMgr)
		go func() {
			if err := server.Start(ctx, cfg.API.Port); err != nil {
				log.Error().Err(err).Msg("Control API stopped")
			}
		}()
	}

	log.Info().
		Str("target", target.Label()).
		Str("window_id", fmt.Sprintf("0x%x", target.ID)).
		Int("fps", cfg.FPS).
		Str("crop", cfg.Crop().String()).
		Str("backend", cfg.Display.Backend).
		Msg("Mirroring window")

	if ebiten != nil {
		err = runWithEbiten(ctx, sess, ebiten)
	} else {
		err = sess.Run(ctx)
	}

	return report(sess, err)
}

// runWithEbiten runs the session on its own goroutine while the Ebitengine
// loop holds the main goroutine
func runWithEbiten(ctx context.Context, sess *session.Session, sink *ebitensink.Sink) error {
	done := make(chan error, 1)
	go func() {
		err := sess.Run(ctx)
		sink.Close()
		done <- err
	}()

	if err := sink.Run(); err != nil {
		sess.Stop()
		<-done
		return err
	}
	return <-done
}

// chooseTarget resolves --id and --title, falling back to the picker on a terminal
func chooseTarget(ctx context.Context, registry window.Registry) (window.Handle, error) {
	handles, err := registry.List(ctx)
	if err != nil {
		return window.Handle{}, fmt.Errorf("failed to list windows: %w", err)
	}

	target, err := findTarget(handles, mirrorID, mirrorTitle)
	switch {
	case err == nil:
		return target, nil
	case errors.Is(err, errAmbiguousTarget) && interactive():
		return pickWindow(window.FindByTitle(handles, mirrorTitle))
	case errors.Is(err, errNoTarget) && interactive():
		return pickWindow(handles)
	case errors.Is(err, errNoTarget):
		return window.Handle{}, fmt.Errorf("%w: pass --id or --title (see 'windowmirror list')", err)
	default:
		return window.Handle{}, err
	}
}

// report prints how the session ended. A failed session is an error.
func report(sess *session.Session, runErr error) error {
	snap := sess.Snapshot()

	fmt.Printf("Mirror %s after %d frames", snap.State, snap.FramesRendered)
	if snap.AchievedFPS > 0 {
		fmt.Printf(" (%.1f fps achieved)", snap.AchievedFPS)
	}
	fmt.Println()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if snap.State == session.StateFailed {
		switch snap.Reason {
		case session.ReasonTargetLost:
			return fmt.Errorf("mirrored window was closed, minimized or became unreachable")
		case session.ReasonSinkUnavailable:
			return fmt.Errorf("mirror window was destroyed")
		default:
			return fmt.Errorf("mirror failed: %s", snap.Reason)
		}
	}
	return nil
}
