// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/n7tools/finalmission/services/mission/codec"
	"github.com/n7tools/finalmission/services/mission/engine"
	"github.com/n7tools/finalmission/services/mission/me2"
	"github.com/n7tools/finalmission/services/mission/outcome"
	"github.com/n7tools/finalmission/services/mission/ruleset"
)

func runOutcomesCommand(cmd *cobra.Command, args []string) {
	snap, path := loadSnapshot(args)
	rules, err := rulesByName(snap.Ruleset)
	if err != nil {
		exitf("%v", err)
	}
	layout := codec.NewLayout(rules.UniverseSize())
	table := snap.Outcomes

	fmt.Printf("Snapshot:   %s\n", path)
	fmt.Printf("Ruleset:    %s\n", snap.Ruleset)
	fmt.Printf("Traversals: %d\n", table.Traversals())
	fmt.Printf("Outcomes:   %d distinct\n", len(table))
	if engine.SnapshotComplete(snap) {
		fmt.Println("Status:     complete")
	} else {
		fmt.Println("Status:     in progress")
	}

	bySurvivors := make(map[int]int)
	for fp := range table {
		o := codec.DecodeOutcome(layout, fp)
		bySurvivors[o.Spared.Count()]++
	}
	fmt.Println()
	fmt.Println("Distinct outcomes by surviving allies:")
	for n := 0; n <= rules.UniverseSize(); n++ {
		if c := bySurvivors[n]; c > 0 {
			fmt.Printf("  %2d survive: %d\n", n, c)
		}
	}

	if topCount > 0 {
		printTopOutcomes(layout, table, topCount)
	}
}

// printTopOutcomes lists the outcomes reached by the most traversals,
// count descending with fingerprint as the tie-break.
func printTopOutcomes(layout codec.Layout, table outcome.Table, n int) {
	type entry struct {
		fp  uint64
		rec outcome.Record
	}
	entries := make([]entry, 0, len(table))
	for fp, rec := range table {
		entries = append(entries, entry{fp: fp, rec: rec})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].rec.Count != entries[j].rec.Count {
			return entries[i].rec.Count > entries[j].rec.Count
		}
		return entries[i].fp < entries[j].fp
	})
	if n > len(entries) {
		n = len(entries)
	}

	fmt.Printf("\nTop %d outcomes by traversal count:\n", n)
	for _, e := range entries[:n] {
		o := codec.DecodeOutcome(layout, e.fp)
		fmt.Printf("  %#014x  count %-12d survivors: %s\n",
			e.fp, e.rec.Count, me2.FormatRoster(o.Spared))
	}
}

func runDescribeCommand(cmd *cobra.Command, args []string) {
	snap, _ := loadSnapshot(args)
	rules, err := rulesByName(snap.Ruleset)
	if err != nil {
		exitf("%v", err)
	}
	fp, err := parseFingerprint(fingerprintArg)
	if err != nil {
		exitf("%v", err)
	}
	rec, ok := snap.Outcomes[fp]
	if !ok {
		exitf("fingerprint %#x is not in this outcome table", fp)
	}

	layout := codec.NewLayout(rules.UniverseSize())
	o := codec.DecodeOutcome(layout, fp)
	tr := engine.DecodeTraversal(rules, rec.Traversal)

	fmt.Printf("Fingerprint: %#x\n", fp)
	fmt.Printf("Reached by:  %d traversals\n", rec.Count)
	fmt.Println()
	fmt.Printf("Survive: %s\n", me2.FormatRoster(o.Spared))
	fmt.Printf("Die:     %s\n", me2.FormatRoster(o.Dead))
	fmt.Printf("Loyal survivors: %s\n", me2.FormatRoster(o.Loyalty))
	if o.Crew {
		fmt.Println("The crew is rescued.")
	} else {
		fmt.Println("The crew is lost.")
	}

	fmt.Println()
	fmt.Println("One decision path that reaches this outcome:")
	fmt.Printf("  Loyal allies: %s\n", me2.FormatRoster(tr.Loyalty))
	for _, u := range tr.Upgrades {
		switch {
		case u.Purchased:
			fmt.Printf("  Upgrade %s: purchased\n", u.Name)
		case len(u.Picks) > 0:
			fmt.Printf("  Upgrade %s: declined; %s\n", u.Name, formatDeflection(u.Picks, u.InvertLast))
		default:
			fmt.Printf("  Upgrade %s: declined\n", u.Name)
		}
	}
	fmt.Printf("  Tech specialist: %s\n", me2.FormatRoster(tr.Tech))
	if tr.FirstLeaderKnown {
		if tr.FirstLeaderIdeal {
			fmt.Println("  First fireteam leader: ideal; the tech survives the vents")
		} else {
			fmt.Println("  First fireteam leader: not ideal; the tech dies in the vents")
		}
	}
	fmt.Printf("  Biotic specialist: %s\n", me2.FormatRoster(tr.Biotic))
	fmt.Printf("  Second fireteam leader: %s\n", me2.FormatRoster(tr.SecondLeader))
	if tr.Escort != ruleset.Nobody {
		fmt.Printf("  Crew escort: %s\n", me2.FormatRoster(tr.Escort))
	} else {
		fmt.Println("  Crew escort: none")
	}
	if tr.Walked {
		fmt.Printf("  Long walk: %s\n", formatDeflection(tr.WalkUnpicks, tr.WalkInvertLast))
	}
	fmt.Printf("  Final squad: %s\n", me2.FormatRoster(tr.Squad))
}
