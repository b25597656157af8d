// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/n7tools/finalmission/services/mission/codec"
	"github.com/n7tools/finalmission/services/mission/me2"
	"github.com/n7tools/finalmission/services/mission/storage/badger"
)

// indexDir keeps each ruleset's index separate; their fingerprints are
// not comparable.
func indexDir(rulesetName string) string {
	return filepath.Join(expandPath(cfg.Data.IndexDir), rulesetName)
}

func runIndexBuildCommand(cmd *cobra.Command, args []string) {
	snap, path := loadSnapshot(args)

	logger := newLogger(false)
	defer logger.Close()

	dir := indexDir(snap.Ruleset)
	ix, err := badger.Open(badger.Config{
		Path:       dir,
		SyncWrites: true,
		Logger:     logger.Slog(),
	})
	if err != nil {
		exitf("open index: %v", err)
	}
	defer ix.Close()

	if err := ix.Import(snap.Outcomes); err != nil {
		exitf("import outcomes: %v", err)
	}
	fmt.Printf("Indexed %d outcomes from %s into %s\n", len(snap.Outcomes), path, dir)
}

func runIndexLookupCommand(cmd *cobra.Command, args []string) {
	fp, err := parseFingerprint(args[0])
	if err != nil {
		exitf("%v", err)
	}
	rules, err := rulesByName(indexRuleset)
	if err != nil {
		exitf("%v", err)
	}

	ix, err := badger.Open(badger.DefaultConfig(indexDir(indexRuleset)))
	if err != nil {
		exitf("open index: %v", err)
	}
	defer ix.Close()

	rec, err := ix.Lookup(fp)
	if errors.Is(err, badger.ErrNotIndexed) {
		exitf("fingerprint %#x is not in the %s index", fp, indexRuleset)
	}
	if err != nil {
		exitf("lookup: %v", err)
	}

	o := codec.DecodeOutcome(codec.NewLayout(rules.UniverseSize()), fp)
	fmt.Printf("Fingerprint: %#x\n", fp)
	fmt.Printf("Reached by:  %d traversals\n", rec.Count)
	fmt.Printf("Survive:     %s\n", me2.FormatRoster(o.Spared))
	fmt.Printf("Die:         %s\n", me2.FormatRoster(o.Dead))
	if o.Crew {
		fmt.Println("The crew is rescued.")
	} else {
		fmt.Println("The crew is lost.")
	}
}
