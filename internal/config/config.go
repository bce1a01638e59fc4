package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/bryanchriswhite/WindowMirror/internal/capture"
	"github.com/bryanchriswhite/WindowMirror/internal/display"
	"github.com/bryanchriswhite/WindowMirror/internal/logger"
	"github.com/bryanchriswhite/WindowMirror/internal/window"
)

const (
	MinFPS = 1
	MaxFPS = 240

	DefaultFPS            = 60
	DefaultTitleBarHeight = 32
	DefaultAPIPort        = 8099
)

// Backends are the available display sink implementations
var Backends = []string{"x11", "ebiten"}

// Duration is a time.Duration written as "250ms" in config files
type Duration time.Duration

// MarshalText encodes the duration in time.Duration notation
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText parses time.Duration notation
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// Config represents the application configuration
type Config struct {
	FPS             int           `json:"fps" yaml:"fps"`
	ExcludeTitleBar bool          `json:"exclude_title_bar" yaml:"exclude_title_bar"`
	TitleBarHeight  int           `json:"title_bar_height" yaml:"title_bar_height"`
	Display         DisplayConfig `json:"display" yaml:"display"`
	MissThreshold   int           `json:"miss_threshold" yaml:"miss_threshold"`
	CaptureTimeout  Duration      `json:"capture_timeout" yaml:"capture_timeout"`
	MinWindowWidth  int           `json:"min_window_width" yaml:"min_window_width"`
	MinWindowHeight int           `json:"min_window_height" yaml:"min_window_height"`
	API             APIConfig     `json:"api" yaml:"api"`
	LogLevel        string        `json:"log_level" yaml:"log_level"`
}

// DisplayConfig represents the mirror surface configuration
type DisplayConfig struct {
	Mode    string `json:"mode" yaml:"mode"`
	Width   int    `json:"width" yaml:"width"`
	Height  int    `json:"height" yaml:"height"`
	Backend string `json:"backend" yaml:"backend"`
	Scaler  string `json:"scaler" yaml:"scaler"`
	ShowFPS bool   `json:"show_fps" yaml:"show_fps"`
}

// APIConfig represents the local control API configuration
type APIConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Port    int  `json:"port" yaml:"port"`
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		FPS:             DefaultFPS,
		ExcludeTitleBar: true,
		TitleBarHeight:  DefaultTitleBarHeight,
		Display: DisplayConfig{
			Mode:    string(display.ModeAuto),
			Width:   1280,
			Height:  720,
			Backend: "x11",
			Scaler:  string(display.ScalerNearest),
		},
		MissThreshold:   3,
		CaptureTimeout:  Duration(250 * time.Millisecond),
		MinWindowWidth:  100,
		MinWindowHeight: 100,
		API: APIConfig{
			Enabled: false,
			Port:    DefaultAPIPort,
		},
		LogLevel: "info",
	}
}

// Normalize clamps numeric settings into range and fills empty enums with
// their defaults. It returns an error for values that cannot be repaired.
func (c *Config) Normalize() error {
	log := logger.WithComponent("config")
	def := Defaults()

	if c.FPS < MinFPS || c.FPS > MaxFPS {
		clamped := min(max(c.FPS, MinFPS), MaxFPS)
		log.Warn().
			Int("fps", c.FPS).
			Int("clamped", clamped).
			Msg("FPS out of range")
		c.FPS = clamped
	}
	if c.TitleBarHeight < 0 {
		c.TitleBarHeight = 0
	}
	if c.MissThreshold < 1 {
		c.MissThreshold = def.MissThreshold
	}
	if c.CaptureTimeout < 0 {
		c.CaptureTimeout = 0
	}
	if c.Display.Width < 1 {
		c.Display.Width = def.Display.Width
	}
	if c.Display.Height < 1 {
		c.Display.Height = def.Display.Height
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		c.API.Port = def.API.Port
	}
	if c.Display.Mode == "" {
		c.Display.Mode = def.Display.Mode
	}
	if c.Display.Scaler == "" {
		c.Display.Scaler = def.Display.Scaler
	}
	if c.Display.Backend == "" {
		c.Display.Backend = def.Display.Backend
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	if _, err := display.ParseMode(c.Display.Mode); err != nil {
		return err
	}
	if _, err := display.ParseScaler(c.Display.Scaler); err != nil {
		return err
	}
	if err := validateBackend(c.Display.Backend); err != nil {
		return err
	}
	return validateLogLevel(c.LogLevel)
}

func validateBackend(b string) error {
	for _, known := range Backends {
		if b == known {
			return nil
		}
	}
	return fmt.Errorf("invalid display backend %q (use: %s)", b, strings.Join(Backends, ", "))
}

func validateLogLevel(level string) error {
	switch level {
	case "trace", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("invalid log level: %s (use: trace, debug, info, warn, error)", level)
}

// Crop returns the capture crop policy
func (c *Config) Crop() capture.CropPolicy {
	if !c.ExcludeTitleBar {
		return capture.NoCrop()
	}
	return capture.ExcludeTitleBar(c.TitleBarHeight)
}

// WindowFilter returns the listing filter, hiding windows owned by ownPID
func (c *Config) WindowFilter(ownPID int) window.Filter {
	return window.Filter{
		MinWidth:     c.MinWindowWidth,
		MinHeight:    c.MinWindowHeight,
		RequireTitle: true,
		ExcludePID:   ownPID,
	}
}

// DisplayMode returns the parsed display mode, defaulting to auto
func (c *Config) DisplayMode() display.Mode {
	mode, err := display.ParseMode(c.Display.Mode)
	if err != nil {
		return display.ModeAuto
	}
	return mode
}

// DisplayOptions returns the options for creating a display sink
func (c *Config) DisplayOptions() display.Options {
	opts := display.DefaultOptions()
	opts.Width = c.Display.Width
	opts.Height = c.Display.Height
	opts.ShowFPS = c.Display.ShowFPS
	if scaler, err := display.ParseScaler(c.Display.Scaler); err == nil {
		opts.Scaler = scaler
	}
	return opts
}

// Timeout returns the capture timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.CaptureTimeout)
}
