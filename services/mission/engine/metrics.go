// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Outcome Generation
// =============================================================================

var (
	// traversalsTotal counts completed decision-tree traversals.
	// Labels: ruleset
	traversalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finalmission",
		Subsystem: "engine",
		Name:      "traversals_total",
		Help:      "Total completed decision traversals",
	}, []string{"ruleset"})

	// outcomesCurrent tracks the number of distinct outcomes in the table.
	// Labels: ruleset
	outcomesCurrent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "finalmission",
		Subsystem: "engine",
		Name:      "outcomes",
		Help:      "Distinct outcome fingerprints recorded",
	}, []string{"ruleset"})

	// savesTotal counts snapshot saves, periodic and final.
	// Labels: ruleset
	savesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finalmission",
		Subsystem: "engine",
		Name:      "saves_total",
		Help:      "Total snapshot saves",
	}, []string{"ruleset"})

	// pausesTotal counts honored pause requests.
	// Labels: ruleset
	pausesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finalmission",
		Subsystem: "engine",
		Name:      "pauses_total",
		Help:      "Total honored pause requests",
	}, []string{"ruleset"})
)
