// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "finalmission",
		Short: "Enumerate every outcome of the suicide mission",
		Long: `finalmission exhaustively enumerates the decision space of the Mass
Effect 2 suicide mission and records which squad fates each decision
path produces. Generation checkpoints into a snapshot file, so long
runs pause on Ctrl-C and resume where they left off.`,
	}

	generateCmd = &cobra.Command{
		Use:   "generate [snapshot-file]",
		Short: "Run the enumeration headless until it completes or is interrupted",
		Long: `Generates the outcome table into the snapshot file, resuming from its
checkpoint when one exists. Ctrl-C pauses at the next checkpoint after
saving; running the same command again resumes. A bare file name is
resolved against the configured data directory.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runGenerateCommand,
	}
	escortAtFour bool
	saveInterval string
	metricsAddr  string

	watchCmd = &cobra.Command{
		Use:   "watch [snapshot-file]",
		Short: "Run the enumeration with a live terminal view",
		Long:  `Like generate, but with a live view of traversal counters. Press q to pause and exit, s to force a snapshot save.`,
		Args:  cobra.MaximumNArgs(1),
		Run:   runWatchCommand,
	}

	progressCmd = &cobra.Command{
		Use:   "progress [snapshot-file]",
		Short: "Report how far a snapshot's enumeration has advanced",
		Args:  cobra.MaximumNArgs(1),
		Run:   runProgressCommand,
	}

	outcomesCmd = &cobra.Command{
		Use:   "outcomes [snapshot-file]",
		Short: "Summarize the outcome table in a snapshot",
		Args:  cobra.MaximumNArgs(1),
		Run:   runOutcomesCommand,
	}
	topCount int

	describeCmd = &cobra.Command{
		Use:   "describe [snapshot-file]",
		Short: "Explain one outcome and a decision path that reaches it",
		Args:  cobra.MaximumNArgs(1),
		Run:   runDescribeCommand,
	}
	fingerprintArg string

	indexCmd = &cobra.Command{
		Use:   "index",
		Short: "Manage the keyed outcome lookup index",
		Long:  `The snapshot file is rewritten whole on every save; the index gives completed tables fast keyed reads without parsing the snapshot.`,
	}
	indexBuildCmd = &cobra.Command{
		Use:   "build [snapshot-file]",
		Short: "Import a snapshot's outcome table into the lookup index",
		Args:  cobra.MaximumNArgs(1),
		Run:   runIndexBuildCommand,
	}
	indexLookupCmd = &cobra.Command{
		Use:   "lookup [fingerprint]",
		Short: "Look up one outcome fingerprint in the index",
		Args:  cobra.ExactArgs(1),
		Run:   runIndexLookupCommand,
	}
	indexRuleset string
)

// init() runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the config file (default ~/.finalmission/finalmission.yaml)")

	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().BoolVar(&escortAtFour, "escort-at-four", false,
		"Allow sending the crew escort when exactly four allies remain active")
	generateCmd.Flags().StringVar(&saveInterval, "save-interval", "",
		"Periodic snapshot cadence, e.g. 5m (0 disables; default from config)")
	generateCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address while generating")

	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&escortAtFour, "escort-at-four", false,
		"Allow sending the crew escort when exactly four allies remain active")
	watchCmd.Flags().StringVar(&saveInterval, "save-interval", "",
		"Periodic snapshot cadence, e.g. 5m (0 disables; default from config)")

	rootCmd.AddCommand(progressCmd)

	rootCmd.AddCommand(outcomesCmd)
	outcomesCmd.Flags().IntVar(&topCount, "top", 0,
		"Also list the N outcomes reached by the most traversals")
	outcomesCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVar(&fingerprintArg, "fingerprint", "",
		"Outcome fingerprint to describe, hex or decimal")
	describeCmd.MarkFlagRequired("fingerprint")

	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexLookupCmd)
	indexLookupCmd.Flags().StringVar(&indexRuleset, "ruleset", "me2",
		"Ruleset whose index to query (me2 or me2-escort4)")
}
