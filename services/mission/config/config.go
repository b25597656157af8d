// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the finalmission YAML configuration.
//
// The file lives at ~/.finalmission/finalmission.yaml by default and is
// created with defaults on first use. Command-line flags override
// whatever the file says; the file is for the settings nobody wants to
// retype on every run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/n7tools/finalmission/pkg/logging"
)

// Config is the root of the YAML configuration.
type Config struct {
	// Data controls where snapshots and lookup indexes live.
	Data DataConfig `yaml:"data"`

	// Engine controls generation behavior.
	Engine EngineConfig `yaml:"engine"`

	// Logging controls log output.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics controls the optional Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// DataConfig locates the on-disk state.
type DataConfig struct {
	// Dir is the default directory for snapshot files when a command is
	// given a bare file name. Supports ~ expansion.
	Dir string `yaml:"dir"`

	// IndexDir is where lookup indexes are built. Supports ~ expansion.
	IndexDir string `yaml:"index_dir"`
}

// EngineConfig controls generation behavior.
type EngineConfig struct {
	// SaveInterval is the periodic snapshot cadence as a Go duration
	// string, e.g. "5m". Empty or "0" disables periodic saves.
	SaveInterval string `yaml:"save_interval"`

	// AllowEscortAtFour permits sending the escort when exactly four
	// candidates remain active. This changes the outcome space, so
	// snapshots record which policy generated them.
	AllowEscortAtFour bool `yaml:"allow_escort_at_four"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, or error.
	Level string `yaml:"level"`

	// Dir enables file logging in the given directory. Supports ~
	// expansion.
	Dir string `yaml:"dir"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address, e.g. "localhost:9317". Empty disables
	// the endpoint.
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Data: DataConfig{
			Dir:      "~/.finalmission/data",
			IndexDir: "~/.finalmission/index",
		},
		Engine: EngineConfig{
			SaveInterval: "5m",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".finalmission", "finalmission.yaml"), nil
}

// Load reads the config file at path, creating it with defaults first
// if it does not exist.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return Config{}, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields that parse into richer types.
func (c Config) Validate() error {
	if _, err := c.Engine.Interval(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// Interval parses SaveInterval. Empty and "0" both disable periodic
// saves.
func (e EngineConfig) Interval() (time.Duration, error) {
	if e.SaveInterval == "" || e.SaveInterval == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(e.SaveInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid save_interval %q: %w", e.SaveInterval, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid save_interval %q: must not be negative", e.SaveInterval)
	}
	return d, nil
}

// ParsedLevel parses the logging level.
func (l LoggingConfig) ParsedLevel() (logging.Level, error) {
	return logging.ParseLevel(l.Level)
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
