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
	"time"

	"github.com/spf13/cobra"

	"github.com/n7tools/finalmission/pkg/bits"
	"github.com/n7tools/finalmission/services/mission/engine"
	"github.com/n7tools/finalmission/services/mission/ruleset"
	"github.com/n7tools/finalmission/services/mission/storage"
)

func runProgressCommand(cmd *cobra.Command, args []string) {
	path := snapshotPath(args, configRules())
	snap, err := storage.Load(context.Background(), path)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Printf("No snapshot at %s; nothing generated yet.\n", path)
		return
	}
	if err != nil {
		exitf("load snapshot: %v", err)
	}
	rules, err := rulesByName(snap.Ruleset)
	if err != nil {
		exitf("%v", err)
	}

	fmt.Printf("Snapshot:   %s\n", path)
	fmt.Printf("Ruleset:    %s\n", snap.Ruleset)
	if info, err := os.Stat(path); err == nil {
		age := time.Since(info.ModTime()).Round(time.Second)
		fmt.Printf("Last saved: %s (%s ago)\n", info.ModTime().Format(time.RFC3339), age)
	}
	fmt.Printf("Traversals: %d\n", snap.Outcomes.Traversals())
	fmt.Printf("Outcomes:   %d distinct\n", len(snap.Outcomes))

	switch {
	case engine.SnapshotComplete(snap):
		fmt.Println("Progress:   complete (100%)")
	case len(snap.Frames) == 0:
		fmt.Println("Progress:   not started (0%)")
	default:
		frac, detail := progressEstimate(rules, snap.Frames)
		fmt.Printf("Progress:   %s\n", detail)
		fmt.Printf("Overall:    %.2f%%\n", frac*100)
	}
}

// progressEstimate reads the checkpoint path's outermost decisions and
// turns them into a completed fraction. Recruit combinations dominate
// the traversal count roughly evenly, so combinations finished plus the
// loyalty counter's position inside the current one make a serviceable
// estimate.
func progressEstimate(rules ruleset.Rules, frames []storage.Frame) (float64, string) {
	vals := make(map[string]uint64, len(frames))
	for _, f := range frames {
		vals[f.Key] = f.Value
	}

	recruitable := uint64(rules.Recruitable())
	poolSize := bits.Count(recruitable)
	min := rules.MinRecruits()
	size := int(vals[engine.KeyRecruitCount])

	var total, done float64
	for s := min; s <= poolSize; s++ {
		c := float64(bits.Binomial(poolSize, s))
		total += c
		if s < size {
			done += c
		}
	}

	var rank uint64
	if combo, ok := vals[engine.KeyRecruits]; ok {
		rank = bits.Rank(recruitable, combo)
	}
	loyaltyFrac := float64(vals[engine.KeyLoyalty]) / float64(uint64(1)<<rules.UniverseSize())

	frac := (done + float64(rank) + loyaltyFrac) / total
	detail := fmt.Sprintf("recruit size %d of [%d..%d], combination %d/%d, loyalty %.1f%%",
		size, min, poolSize,
		rank+1, bits.Binomial(poolSize, size),
		loyaltyFrac*100)
	return frac, detail
}
