package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/WindowMirror/internal/logger"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. WINDOWMIRROR_FPS or WINDOWMIRROR_DISPLAY_MODE
const EnvPrefix = "WINDOWMIRROR"

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/windowmirror/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "windowmirror", "config.yaml"), nil
}

// NewManager loads configFile, or the default path when empty. A missing
// file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		def, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = def
	}

	m := &Manager{configPath: path}

	if err := m.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Int("fps", m.config.FPS).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration from disk. Keys missing from the file keep
// their defaults.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	cfg := m.Get()

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// Update validates and replaces the entire configuration
func (m *Manager) Update(cfg *Config) error {
	next := *cfg
	if err := next.Normalize(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = &next
	m.mu.Unlock()
	return m.Save()
}

// Set changes one key and saves
func (m *Manager) Set(key, value string) error {
	m.mu.Lock()
	cfg := *m.config
	if err := cfg.Set(key, value); err != nil {
		m.mu.Unlock()
		return err
	}
	m.config = &cfg
	m.mu.Unlock()
	return m.Save()
}

// Path returns the path to the config file
func (m *Manager) Path() string {
	return m.configPath
}

// Viper returns a viper instance whose defaults are the loaded file values.
// Environment variables with EnvPrefix override them, and callers may bind
// command-line flags on top.
func (m *Manager) Viper() *viper.Viper {
	cfg := m.Get()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range Keys() {
		val, _ := cfg.Lookup(key)
		v.SetDefault(key, val)
	}
	return v
}

// FromViper builds a configuration from v's resolved values, keys missing
// from v keep their defaults
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := Defaults()
	for _, key := range Keys() {
		if !v.IsSet(key) {
			continue
		}
		if err := fields[key].set(cfg, v.GetString(key)); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}
