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

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/n7tools/finalmission/services/mission/engine"
	"github.com/n7tools/finalmission/services/mission/tui"
)

func runWatchCommand(cmd *cobra.Command, args []string) {
	rules := missionRules(cmd)
	interval, err := saveIntervalFor(cmd)
	if err != nil {
		exitf("%v", err)
	}

	// Quiet logger: stderr output would tear the live view. File
	// logging still applies when configured.
	logger := newLogger(true)
	defer logger.Close()

	path := snapshotPath(args, rules)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		exitf("create data directory: %v", err)
	}

	eng, err := engine.New(engine.Config{
		Rules:        rules,
		Path:         path,
		Logger:       logger.Slog(),
		SaveInterval: interval,
	})
	if err != nil {
		exitf("engine: %v", err)
	}
	if err := eng.Load(context.Background()); err != nil {
		exitf("load snapshot: %v", err)
	}
	if eng.IsComplete() {
		stats := eng.Stats()
		fmt.Printf("Already complete: %d traversals, %d distinct outcomes.\n", stats.Traversals, stats.Outcomes)
		return
	}

	p := tea.NewProgram(tui.NewWatchModel(eng, tui.DefaultWatchConfig(rules.Name())))

	// A TUI failure cancels the group context, which the engine turns
	// into a pause; a non-pause engine failure quits the view.
	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		genErr := eng.Generate(gctx)
		p.Send(tui.DoneMsg{Err: genErr})
		if genErr != nil && !errors.Is(genErr, engine.ErrPaused) {
			return genErr
		}
		return nil
	})
	g.Go(func() error {
		_, runErr := p.Run()
		return runErr
	})
	if err := g.Wait(); err != nil {
		exitf("watch: %v", err)
	}

	stats := eng.Stats()
	if eng.IsComplete() {
		fmt.Printf("Complete: %d traversals, %d distinct outcomes.\n", stats.Traversals, stats.Outcomes)
	} else {
		fmt.Printf("Paused at %d traversals, %d distinct outcomes.\n", stats.Traversals, stats.Outcomes)
		fmt.Println("Run watch or generate again to resume.")
	}
}
