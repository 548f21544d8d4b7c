// Package cliconfig holds the armory CLI's user-editable settings and the
// publish credential storage shared by every command.
package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds user-editable CLI settings stored in ~/.config/armory/config.yaml.
type Config struct {
	Registry string `yaml:"registry,omitempty"`
}

// DefaultRegistry is used when neither the config file nor --registry names one.
const DefaultRegistry = "http://localhost:3000"

// ConfigDir returns the config directory (~/.config/armory/ or platform
// equivalent). Can be overridden with ARMORY_CONFIG_DIR env var (for testing).
func ConfigDir() (string, error) {
	if dir := os.Getenv("ARMORY_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "armory"), nil
}

// ConfigPath returns the path to config.yaml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the CLI config from disk. Returns empty config if not found.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes the CLI config to disk.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ResolveRegistry picks the registry URL in priority order: the explicit
// flag value, then the config file, then DefaultRegistry.
func (c *Config) ResolveRegistry(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if c.Registry != "" {
		return c.Registry
	}
	return DefaultRegistry
}
