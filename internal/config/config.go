// Package config manages the NSE configuration file and the data
// directory layout. It handles loading, saving, and initializing the
// service configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	ConfigFile   = "nse.toml"
	DatabaseFile = "nse.db"
	TokensFile   = "tokens.db"
	StoresDir    = "stores"
)

// Config represents the NSE configuration.
type Config struct {
	Listen    string `toml:"listen"`
	NixBinary string `toml:"nix_binary"`
	Registry  string `toml:"registry"`

	// StrictDeleteStderr treats any stderr output from a nominally
	// successful `nix store delete` as a failure. Some nix versions warn
	// on stderr while still deleting, so this is a policy point.
	StrictDeleteStderr bool `toml:"strict_delete_stderr"`

	path string // data directory
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Listen:             "0.0.0.0:8470",
		NixBinary:          "nix",
		Registry:           "nixpkgs",
		StrictDeleteStderr: true,
	}
}

// Load loads the configuration from the given data directory.
func Load(dataDir string) (*Config, error) {
	configPath := filepath.Join(dataDir, ConfigFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.path = dataDir
	return cfg, nil
}

// Save saves the configuration to disk.
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0644)
}

// Initialize creates a new data directory with a default configuration.
func Initialize(dataDir string) (*Config, error) {
	configPath := filepath.Join(dataDir, ConfigFile)
	if _, err := os.Stat(configPath); err == nil {
		return nil, fmt.Errorf("nse data directory already initialized")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, StoresDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stores directory: %w", err)
	}

	cfg := Default()
	cfg.path = dataDir

	if err := cfg.Save(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrInit loads an existing configuration or initializes a fresh data
// directory with defaults.
func LoadOrInit(dataDir string) (*Config, error) {
	if _, err := os.Stat(filepath.Join(dataDir, ConfigFile)); os.IsNotExist(err) {
		return Initialize(dataDir)
	}
	return Load(dataDir)
}

// DataDir returns the data directory path.
func (c *Config) DataDir() string {
	return c.path
}

// DatabasePath returns the path to the sqlite index database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.path, DatabaseFile)
}

// TokensPath returns the path to the bbolt token database.
func (c *Config) TokensPath() string {
	return filepath.Join(c.path, TokensFile)
}

// StoresBase returns the directory under which per-owner store roots live.
func (c *Config) StoresBase() string {
	return filepath.Join(c.path, StoresDir)
}
