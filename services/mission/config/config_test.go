// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "finalmission.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not created: %v", err)
	}
	if cfg.Engine.SaveInterval != "5m" {
		t.Errorf("default save_interval = %q, want 5m", cfg.Engine.SaveInterval)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default logging level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadParsesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finalmission.yaml")
	content := `
data:
  dir: /tmp/missions
engine:
  save_interval: 90s
  allow_escort_at_four: true
logging:
  level: debug
  json: true
metrics:
  addr: localhost:9317
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Data.Dir != "/tmp/missions" {
		t.Errorf("data.dir = %q", cfg.Data.Dir)
	}
	if !cfg.Engine.AllowEscortAtFour {
		t.Error("allow_escort_at_four not parsed")
	}
	if d, err := cfg.Engine.Interval(); err != nil || d != 90*time.Second {
		t.Errorf("Interval() = %v, %v; want 90s", d, err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.JSON {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Addr != "localhost:9317" {
		t.Errorf("metrics.addr = %q", cfg.Metrics.Addr)
	}

	// Fields absent from the file keep their defaults.
	if cfg.Data.IndexDir != "~/.finalmission/index" {
		t.Errorf("index_dir default = %q", cfg.Data.IndexDir)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad interval", "engine:\n  save_interval: soon\n"},
		{"negative interval", "engine:\n  save_interval: -5m\n"},
		{"bad level", "logging:\n  level: verbose\n"},
		{"bad yaml", "engine: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "finalmission.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("Load accepted a bad config")
			}
		})
	}
}

func TestIntervalDisabled(t *testing.T) {
	for _, raw := range []string{"", "0"} {
		d, err := EngineConfig{SaveInterval: raw}.Interval()
		if err != nil || d != 0 {
			t.Errorf("Interval(%q) = %v, %v; want 0, nil", raw, d, err)
		}
	}
}
