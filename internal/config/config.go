// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for otama.
//
// Settings live in ~/.otama/config.toml and can be overridden per run by
// CLI flags. The same directory holds the conversation database and the
// log file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the complete otama configuration.
type Config struct {
	// Host is the server address, without scheme or port.
	Host string `toml:"host"`
	// Port is the server port.
	Port int `toml:"port"`
	// Model is the model name to query.
	Model string `toml:"model"`
	// Verbose prints token and timing accounting after each response.
	Verbose bool `toml:"verbose"`
	// Color enables styled and markdown-rendered output.
	Color bool `toml:"color"`
	// Save persists the conversation on exit without asking.
	Save bool `toml:"save"`
	// Stream renders the response incrementally as it is generated.
	Stream bool `toml:"stream"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Host:   "localhost",
		Port:   11434,
		Model:  "llama3:latest",
		Color:  true,
		Stream: true,
	}
}

// Validate checks invariants that flags and file values must satisfy.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if c.Port < 1 || c.Port > 65534 {
		return fmt.Errorf("port %d out of bounds", c.Port)
	}
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	return nil
}

// Endpoint returns the host:port pair.
func (c *Config) Endpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// Dir returns the otama project directory (~/.otama).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".otama"), nil
}

// Path returns the TOML config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DatabasePath returns the conversation database location.
func DatabasePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "otama.db"), nil
}

// LogPath returns the log file location.
func LogPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "otama.log"), nil
}

// EnsureDir creates the project directory if absent.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config file at path into defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Exists reports whether a config file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Save writes the configuration to a TOML file.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# otama configuration file")
	fmt.Fprintln(file, "")
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// FLAG OVERRIDES
// =============================================================================

// Overrides carries values supplied on the command line. Nil pointers
// mean the flag was not given; file values win for those.
type Overrides struct {
	Host    *string
	Port    *int
	Model   *string
	Verbose *bool
	Color   *bool
	Save    *bool
	Stream  *bool
}

// Apply layers CLI overrides on top of a loaded config.
func (c *Config) Apply(o Overrides) {
	if o.Host != nil {
		c.Host = *o.Host
	}
	if o.Port != nil {
		c.Port = *o.Port
	}
	if o.Model != nil {
		c.Model = *o.Model
	}
	if o.Verbose != nil {
		c.Verbose = *o.Verbose
	}
	if o.Color != nil {
		c.Color = *o.Color
	}
	if o.Save != nil {
		c.Save = *o.Save
	}
	if o.Stream != nil {
		c.Stream = *o.Stream
	}
}
