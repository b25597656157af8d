// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/n7tools/finalmission/pkg/logging"
	"github.com/n7tools/finalmission/services/mission/config"
	"github.com/n7tools/finalmission/services/mission/me2"
	"github.com/n7tools/finalmission/services/mission/ruleset"
	"github.com/n7tools/finalmission/services/mission/storage"
)

// exitf prints a terminal failure and exits non-zero.
func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "finalmission: "+format+"\n", args...)
	os.Exit(1)
}

// expandPath resolves a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// configRules returns the scenario selected by the config file alone.
// Read-only commands use it to derive the default snapshot file name.
func configRules() *me2.Scenario {
	return me2.New(me2.Config{AllowEscortAtFour: cfg.Engine.AllowEscortAtFour})
}

// missionRules returns the scenario for a generating command, letting an
// explicit --escort-at-four flag override the config default.
func missionRules(cmd *cobra.Command) *me2.Scenario {
	allow := cfg.Engine.AllowEscortAtFour
	if cmd.Flags().Changed("escort-at-four") {
		allow = escortAtFour
	}
	return me2.New(me2.Config{AllowEscortAtFour: allow})
}

// rulesByName maps a snapshot's recorded ruleset name back to the rules
// that generated it.
func rulesByName(name string) (ruleset.Rules, error) {
	switch name {
	case "me2":
		return me2.New(me2.Config{}), nil
	case "me2-escort4":
		return me2.New(me2.Config{AllowEscortAtFour: true}), nil
	}
	return nil, fmt.Errorf("unknown ruleset %q", name)
}

// snapshotPath resolves the snapshot file for a command. An explicit
// path wins; a bare file name lands in the configured data directory;
// no argument defaults to a name derived from the ruleset.
func snapshotPath(args []string, rules ruleset.Rules) string {
	name := rules.Name() + ".snapshot.json"
	if len(args) > 0 {
		name = args[0]
	}
	if filepath.IsAbs(name) || strings.ContainsRune(name, os.PathSeparator) {
		return expandPath(name)
	}
	return filepath.Join(expandPath(cfg.Data.Dir), name)
}

// loadSnapshot resolves and loads the snapshot for a read-only command,
// exiting with a hint when none exists yet.
func loadSnapshot(args []string) (*storage.Snapshot, string) {
	path := snapshotPath(args, configRules())
	snap, err := storage.Load(context.Background(), path)
	if errors.Is(err, storage.ErrNotFound) {
		exitf("no snapshot at %s; run generate first", path)
	}
	if err != nil {
		exitf("load snapshot: %v", err)
	}
	return snap, path
}

// saveIntervalFor resolves the snapshot cadence, letting an explicit
// --save-interval flag override the config default.
func saveIntervalFor(cmd *cobra.Command) (time.Duration, error) {
	if cmd.Flags().Changed("save-interval") {
		return config.EngineConfig{SaveInterval: saveInterval}.Interval()
	}
	return cfg.Engine.Interval()
}

// newLogger builds the process logger from the loaded config. quiet
// suppresses stderr output for commands that own the terminal.
func newLogger(quiet bool) *logging.Logger {
	level, _ := cfg.Logging.ParsedLevel()
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  expandPath(cfg.Logging.Dir),
		Service: "finalmission",
		JSON:    cfg.Logging.JSON,
		Quiet:   quiet,
	})
}

// parseFingerprint accepts hex (0x-prefixed) or decimal fingerprints.
func parseFingerprint(s string) (uint64, error) {
	fp, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return fp, nil
}

// formatDeflection renders a deflected death: the candidates picked to
// move the death down its priority list, and who it landed on.
func formatDeflection(picks []ruleset.Roster, invertLast bool) string {
	names := func(rs []ruleset.Roster) string {
		parts := make([]string, len(rs))
		for i, r := range rs {
			parts[i] = me2.FormatRoster(r)
		}
		return strings.Join(parts, " and ")
	}
	if !invertLast {
		return fmt.Sprintf("%s protected; the next in priority dies", names(picks))
	}
	if len(picks) == 1 {
		return fmt.Sprintf("%s dies", names(picks))
	}
	last := len(picks) - 1
	return fmt.Sprintf("%s protected; %s dies", names(picks[:last]), me2.FormatRoster(picks[last]))
}
