// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tui provides the terminal view for watching a generation run.
//
// # Description
//
// This package implements the live watch display using bubbletea. It
// polls the engine's counters on a timer and renders traversal totals,
// outcome counts, and throughput while generation runs on its own
// goroutine.
//
// # Thread Safety
//
// The model only reads the engine through Stats and Control, which are
// safe while Generate runs. Do not access model state from outside the
// bubbletea event loop.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/n7tools/finalmission/services/mission/engine"
)

// =============================================================================
// Messages
// =============================================================================

// tickMsg drives the periodic counter refresh.
type tickMsg time.Time

// DoneMsg signals that Generate returned. Err carries engine.ErrPaused
// for a pause, nil for completion, or the failure.
type DoneMsg struct {
	Err error
}

// =============================================================================
// Config
// =============================================================================

// WatchConfig configures the watch view.
type WatchConfig struct {
	// Ruleset is the display name of the scenario being generated.
	Ruleset string

	// Refresh is the counter poll interval (default: 500ms).
	Refresh time.Duration
}

// DefaultWatchConfig returns sensible defaults.
func DefaultWatchConfig(ruleset string) WatchConfig {
	return WatchConfig{
		Ruleset: ruleset,
		Refresh: 500 * time.Millisecond,
	}
}

// =============================================================================
// Model
// =============================================================================

// WatchModel is the bubbletea model for the watch view.
type WatchModel struct {
	config WatchConfig
	eng    *engine.Engine

	started   time.Time
	lastTick  time.Time
	lastStats engine.Stats
	stats     engine.Stats
	rate      float64

	width    int
	pausing  bool
	done     bool
	doneErr  error
	quitting bool
}

// NewWatchModel creates a watch model over a running engine.
func NewWatchModel(eng *engine.Engine, config WatchConfig) WatchModel {
	if config.Refresh <= 0 {
		config.Refresh = 500 * time.Millisecond
	}
	now := time.Now()
	return WatchModel{
		config:   config,
		eng:      eng,
		started:  now,
		lastTick: now,
	}
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return m.tick()
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.config.Refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		now := time.Time(msg)
		stats := m.eng.Stats()
		if dt := now.Sub(m.lastTick).Seconds(); dt > 0 {
			m.rate = float64(stats.Traversals-m.lastStats.Traversals) / dt
		}
		m.lastStats = stats
		m.stats = stats
		m.lastTick = now
		if !m.done {
			return m, m.tick()
		}

	case DoneMsg:
		m.done = true
		m.doneErr = msg.Err
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c", "esc":
			// Ask for a graceful pause; the run ends at the next
			// checkpoint and DoneMsg quits the program.
			m.pausing = true
			m.eng.Control().RequestPause()

		case "s", "S":
			m.eng.Control().RequestSave()
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("finalmission"))
	b.WriteString(" ")
	b.WriteString(rulesetStyle.Render(m.config.Ruleset))
	b.WriteString("\n\n")

	elapsed := time.Since(m.started).Round(time.Second)
	rows := [][2]string{
		{"elapsed", elapsed.String()},
		{"traversals", formatCount(m.stats.Traversals)},
		{"outcomes", formatCount(m.stats.Outcomes)},
		{"rate", fmt.Sprintf("%s/s", formatCount(uint64(m.rate)))},
	}
	for _, row := range rows {
		b.WriteString(labelStyle.Render(row[0]))
		b.WriteString(" ")
		b.WriteString(valueStyle.Render(row[1]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.pausing:
		b.WriteString(statusPausingStyle.Render("pausing at next checkpoint..."))
	default:
		b.WriteString(statusRunningStyle.Render("generating"))
	}
	b.WriteString("\n\n")
	b.WriteString(helpKeyStyle.Render("q"))
	b.WriteString(helpDescStyle.Render(" pause and exit  "))
	b.WriteString(helpKeyStyle.Render("s"))
	b.WriteString(helpDescStyle.Render(" save snapshot now"))
	b.WriteString("\n")

	return b.String()
}

// Err returns the terminal Generate error after the program exits.
func (m WatchModel) Err() error {
	return m.doneErr
}

// formatCount renders large counters with thousands separators.
func formatCount(n uint64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// =============================================================================
// Styles
// =============================================================================

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	rulesetStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	statusRunningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42"))

	statusPausingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))
)
