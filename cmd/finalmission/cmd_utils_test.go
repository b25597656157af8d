// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"testing"

	"github.com/n7tools/finalmission/services/mission/me2"
	"github.com/n7tools/finalmission/services/mission/ruleset"
)

func TestParseFingerprint(t *testing.T) {
	tests := []struct {
		input   string
		want    uint64
		wantErr bool
	}{
		{"0x1a2b", 0x1a2b, false},
		{"42", 42, false},
		{" 0x10 ", 16, false},
		{"zzz", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseFingerprint(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseFingerprint(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseFingerprint(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestRulesByName(t *testing.T) {
	for _, name := range []string{"me2", "me2-escort4"} {
		rules, err := rulesByName(name)
		if err != nil {
			t.Fatalf("rulesByName(%q): %v", name, err)
		}
		if rules.Name() != name {
			t.Errorf("rulesByName(%q).Name() = %q", name, rules.Name())
		}
	}
	if _, err := rulesByName("me3"); err == nil {
		t.Error("rulesByName accepted an unknown name")
	}
}

func TestSnapshotPath(t *testing.T) {
	cfg.Data.Dir = "/data/missions"
	rules := me2.New(me2.Config{})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"default name", nil, "/data/missions/me2.snapshot.json"},
		{"bare file name", []string{"custom.json"}, "/data/missions/custom.json"},
		{"absolute path", []string{"/tmp/run.json"}, "/tmp/run.json"},
		{"relative path", []string{"runs/a.json"}, "runs/a.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snapshotPath(tt.args, rules); got != tt.want {
				t.Errorf("snapshotPath(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestFormatDeflection(t *testing.T) {
	tests := []struct {
		name       string
		picks      []ruleset.Roster
		invertLast bool
		want       string
	}{
		{
			"single victim",
			[]ruleset.Roster{me2.Jack},
			true,
			"Jack dies",
		},
		{
			"one protected",
			[]ruleset.Roster{me2.Jack, me2.Grunt},
			true,
			"Jack protected; Grunt dies",
		},
		{
			"death falls through",
			[]ruleset.Roster{me2.Jack, me2.Grunt},
			false,
			"Jack and Grunt protected; the next in priority dies",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatDeflection(tt.picks, tt.invertLast); got != tt.want {
				t.Errorf("formatDeflection = %q, want %q", got, tt.want)
			}
		})
	}
}
