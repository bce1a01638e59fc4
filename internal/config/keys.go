package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// field binds a dotted config key to a Config field
type field struct {
	get func(c *Config) any
	set func(c *Config, value string) error
}

func intField(ptr func(c *Config) *int) field {
	return field{
		get: func(c *Config) any { return *ptr(c) },
		set: func(c *Config, value string) error {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return fmt.Errorf("invalid number: %s", value)
			}
			*ptr(c) = n
			return nil
		},
	}
}

func boolField(ptr func(c *Config) *bool) field {
	return field{
		get: func(c *Config) any { return *ptr(c) },
		set: func(c *Config, value string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(value))
			if err != nil {
				return fmt.Errorf("invalid boolean: %s (use: true or false)", value)
			}
			*ptr(c) = b
			return nil
		},
	}
}

func stringField(ptr func(c *Config) *string) field {
	return field{
		get: func(c *Config) any { return *ptr(c) },
		set: func(c *Config, value string) error {
			*ptr(c) = strings.ToLower(strings.TrimSpace(value))
			return nil
		},
	}
}

var fields = map[string]field{
	"fps":               intField(func(c *Config) *int { return &c.FPS }),
	"exclude_title_bar": boolField(func(c *Config) *bool { return &c.ExcludeTitleBar }),
	"title_bar_height":  intField(func(c *Config) *int { return &c.TitleBarHeight }),
	"display.mode":      stringField(func(c *Config) *string { return &c.Display.Mode }),
	"display.width":     intField(func(c *Config) *int { return &c.Display.Width }),
	"display.height":    intField(func(c *Config) *int { return &c.Display.Height }),
	"display.backend":   stringField(func(c *Config) *string { return &c.Display.Backend }),
	"display.scaler":    stringField(func(c *Config) *string { return &c.Display.Scaler }),
	"display.show_fps":  boolField(func(c *Config) *bool { return &c.Display.ShowFPS }),
	"miss_threshold":    intField(func(c *Config) *int { return &c.MissThreshold }),
	"capture_timeout": {
		get: func(c *Config) any { return time.Duration(c.CaptureTimeout).String() },
		set: func(c *Config, value string) error {
			return c.CaptureTimeout.UnmarshalText([]byte(value))
		},
	},
	"min_window_width":  intField(func(c *Config) *int { return &c.MinWindowWidth }),
	"min_window_height": intField(func(c *Config) *int { return &c.MinWindowHeight }),
	"api.enabled":       boolField(func(c *Config) *bool { return &c.API.Enabled }),
	"api.port":          intField(func(c *Config) *int { return &c.API.Port }),
	"log_level":         stringField(func(c *Config) *string { return &c.LogLevel }),
}

// Keys returns every settable key in sorted order
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the value of key
func (c *Config) Lookup(key string) (any, error) {
	f, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("configuration key not found: %s", key)
	}
	return f.get(c), nil
}

// Set parses value for key and validates the result. c is unchanged on error.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("configuration key not found: %s", key)
	}

	next := *c
	if err := f.set(&next, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := next.Normalize(); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*c = next
	return nil
}
