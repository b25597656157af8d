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
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/n7tools/finalmission/pkg/logging"
	"github.com/n7tools/finalmission/services/mission/engine"
)

func runGenerateCommand(cmd *cobra.Command, args []string) {
	rules := missionRules(cmd)
	interval, err := saveIntervalFor(cmd)
	if err != nil {
		exitf("%v", err)
	}

	logger := newLogger(false)
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

	// Ctrl-C cancels the context; the engine turns that into a graceful
	// pause at the next checkpoint.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := metricsAddrFor(cmd); addr != "" {
		go serveMetrics(addr, logger)
	}

	if err := eng.Load(ctx); err != nil {
		exitf("load snapshot: %v", err)
	}

	genErr := eng.Generate(ctx)
	stats := eng.Stats()
	switch {
	case genErr == nil:
		fmt.Printf("Complete: %d traversals, %d distinct outcomes.\n", stats.Traversals, stats.Outcomes)
		fmt.Printf("Snapshot: %s\n", path)
	case errors.Is(genErr, engine.ErrPaused):
		fmt.Printf("Paused at %d traversals, %d distinct outcomes.\n", stats.Traversals, stats.Outcomes)
		fmt.Println("Run the same command again to resume.")
	default:
		exitf("generate: %v", genErr)
	}
}

// metricsAddrFor resolves the metrics listen address, flag over config.
func metricsAddrFor(cmd *cobra.Command) string {
	if cmd.Flags().Changed("metrics-addr") {
		return metricsAddr
	}
	return cfg.Metrics.Addr
}

// serveMetrics exposes the Prometheus registry for the lifetime of the
// run. Failures are logged, not fatal; the enumeration matters more
// than its counters.
func serveMetrics(addr string, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint failed", "error", err)
	}
}
