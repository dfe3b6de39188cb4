// ABOUTME: Configuration management for laulau with YAML config loading.
// ABOUTME: Handles backend, local storage, server, and assist settings with ~ expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends for the local variant and the server.
const (
	BackendMarkdown = "markdown"
	BackendSQLite   = "sqlite"
)

// DefaultListen is the address `laulau serve` binds when none is configured.
const DefaultListen = ":8787"

// Config stores laulau configuration loaded from ~/.config/laulau/config.yaml.
type Config struct {
	Remote RemoteConfig `yaml:"remote"`
	Local  LocalConfig  `yaml:"local"`
	Server ServerConfig `yaml:"server"`
	Assist AssistConfig `yaml:"assist"`
}

// RemoteConfig holds the hosted backend settings.
type RemoteConfig struct {
	APIURL      string `yaml:"api_url"`
	DisplayName string `yaml:"display_name,omitempty"`
}

// LocalConfig holds local data directory settings.
type LocalConfig struct {
	DataDir string `yaml:"data_dir,omitempty"`
	Backend string `yaml:"backend,omitempty"`
}

// ServerConfig holds settings for `laulau serve`.
type ServerConfig struct {
	Listen     string  `yaml:"listen,omitempty"`
	DBPath     string  `yaml:"db_path,omitempty"`
	JWTSecret  string  `yaml:"jwt_secret,omitempty"`
	RatePerSec float64 `yaml:"rate_per_sec,omitempty"`
	Burst      int     `yaml:"burst,omitempty"`
}

// AssistConfig holds content assist settings.
type AssistConfig struct {
	// Delay is a Go duration string; empty means the enhancer default.
	Delay string `yaml:"delay,omitempty"`
}

// HasRemote returns true if a hosted backend is configured.
func (c *Config) HasRemote() bool {
	return strings.TrimSpace(c.Remote.APIURL) != ""
}

// GetDataDir returns the local data directory, defaulting to $XDG_DATA_HOME/laulau.
func (c *Config) GetDataDir() (string, error) {
	if c.Local.DataDir != "" {
		return ExpandPath(c.Local.DataDir)
	}
	return DataDir()
}

// GetBackend returns the local storage backend, defaulting to markdown.
func (c *Config) GetBackend() (string, error) {
	switch strings.ToLower(strings.TrimSpace(c.Local.Backend)) {
	case "", BackendMarkdown:
		return BackendMarkdown, nil
	case BackendSQLite:
		return BackendSQLite, nil
	default:
		return "", fmt.Errorf("unknown storage backend %q (want %s or %s)", c.Local.Backend, BackendMarkdown, BackendSQLite)
	}
}

// GetServerDBPath returns the server's SQLite path, defaulting to laulau.db in the data directory.
func (c *Config) GetServerDBPath() (string, error) {
	if c.Server.DBPath != "" {
		return ExpandPath(c.Server.DBPath)
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "laulau.db"), nil
}

// GetListen returns the server listen address.
func (c *Config) GetListen() string {
	if c.Server.Listen != "" {
		return c.Server.Listen
	}
	return DefaultListen
}

// GetAssistDelay parses the assist delay. It returns -1 when unset so the
// enhancer applies its own default.
func (c *Config) GetAssistDelay() (time.Duration, error) {
	if c.Assist.Delay == "" {
		return -1, nil
	}
	d, err := time.ParseDuration(c.Assist.Delay)
	if err != nil {
		return 0, fmt.Errorf("invalid assist delay %q: %w", c.Assist.Delay, err)
	}
	return d, nil
}

// DataDir returns the default laulau data directory.
func DataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "laulau"), nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "laulau", "config.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// Load reads config from disk. Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
