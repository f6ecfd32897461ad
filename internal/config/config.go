// Package config loads and manages querygenie configuration.
// Sources, highest priority first:
//  1. environment variables (QUERYGENIE_SERVER_URL, QUERYGENIE_DATA_DIR, ...)
//  2. the file given via --config
//  3. ~/.config/querygenie/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerConfig points the client at the Query Genie API server.
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
}

// ConnectionConfig holds default database connection parameters used to
// pre-fill the connect form. The password only lives here and in the
// in-flight connect request; it is never mirrored to the local store.
type ConnectionConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Config is the full querygenie configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`

	// Connection pre-fills the database connect form. Optional.
	Connection ConnectionConfig `yaml:"connection"`

	// DataDir is where the local session mirror database lives.
	// Empty = ~/.local/share/querygenie.
	DataDir string `yaml:"data_dir"`

	// LogLevel: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the defaults used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8000",
		},
		Connection: ConnectionConfig{
			Host: "localhost",
			Port: 3306,
		},
		LogLevel: "info",
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "querygenie", "config.yaml")
}

// Load reads the config file (missing file = defaults) and applies
// environment overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		configPath = DefaultPath()
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// DefaultDataDir resolves the data directory, expanding the default when the
// config leaves it empty.
func (c *Config) DefaultDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "querygenie"), nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUERYGENIE_SERVER_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("QUERYGENIE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("QUERYGENIE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
