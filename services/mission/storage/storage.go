// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storage persists engine snapshots.
//
// A snapshot is the engine's full resumable state: the checkpoint frame
// path and the outcome table, written together so a resumed run can
// never double-count traversals. Files are versioned, checksummed, and
// replaced atomically via temp file + rename.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/n7tools/finalmission/services/mission/outcome"
)

var tracer = otel.Tracer("finalmission/storage")

// SnapshotVersion is the current snapshot format version (semver).
const SnapshotVersion = "1.0.0"

var (
	// ErrInvalidInput indicates a nil or empty argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates no snapshot file exists at the path. Callers
	// treat this as a fresh start.
	ErrNotFound = errors.New("snapshot not found")

	// ErrCorrupt indicates the snapshot failed checksum verification.
	ErrCorrupt = errors.New("snapshot corrupt")

	// ErrVersionMismatch indicates an incompatible snapshot format.
	ErrVersionMismatch = errors.New("snapshot version mismatch")
)

// Frame is one checkpoint frame: a decision key and the branch value the
// engine was about to explore. The frame list is ordered root to leaf.
type Frame struct {
	Key   string `json:"key"`
	Value uint64 `json:"value"`
}

// Snapshot is the engine's resumable state.
type Snapshot struct {
	// Ruleset names the rules (and policy) the data was generated under.
	// Resuming under a different name is refused.
	Ruleset string `json:"ruleset"`

	// Frames is the checkpoint path from the root decision to the first
	// unvisited branch. Empty for a fresh run; a single zero-valued root
	// frame marks completion.
	Frames []Frame `json:"frames"`

	// Outcomes is the table accumulated so far.
	Outcomes outcome.Table `json:"outcomes"`
}

// serializableSnapshot is the on-disk format.
type serializableSnapshot struct {
	Snapshot  *Snapshot `json:"snapshot"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Checksum  string    `json:"checksum"`
}

// computeChecksum calculates SHA256 of the snapshot for integrity
// verification. The checksum field itself is excluded.
func computeChecksum(snap *Snapshot, timestamp time.Time) (string, error) {
	data := struct {
		Snapshot  *Snapshot `json:"snapshot"`
		Timestamp time.Time `json:"timestamp"`
		Version   string    `json:"version"`
	}{
		Snapshot:  snap,
		Timestamp: timestamp,
		Version:   SnapshotVersion,
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal for checksum: %w", err)
	}

	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:]), nil
}

// Save writes a snapshot to a file.
//
// Description:
//
//	Serializes the snapshot with a version and checksum, then writes
//	atomically using temp file + rename. A crash mid-save leaves the
//	previous file intact.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	path - File path to write. Parent directory must exist.
//	snap - The snapshot to persist. Must not be nil.
//
// Outputs:
//
//	error - Non-nil if serialization or file write fails.
//
// Thread Safety:
//
//	Safe for concurrent calls on distinct paths. Concurrent saves to one
//	path are serialized by rename atomicity, last writer wins.
func Save(ctx context.Context, path string, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: snapshot must not be nil", ErrInvalidInput)
	}
	if path == "" {
		return fmt.Errorf("%w: path must not be empty", ErrInvalidInput)
	}

	_, span := tracer.Start(ctx, "storage.snapshot.save",
		trace.WithAttributes(
			attribute.String("snapshot.ruleset", snap.Ruleset),
			attribute.Int("snapshot.frames", len(snap.Frames)),
			attribute.Int("snapshot.outcomes", len(snap.Outcomes)),
		),
	)
	defer span.End()

	timestamp := time.Now().UTC()
	checksum, err := computeChecksum(snap, timestamp)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("compute checksum: %w", err)
	}

	data, err := json.Marshal(&serializableSnapshot{
		Snapshot:  snap,
		Timestamp: timestamp,
		Version:   SnapshotVersion,
		Checksum:  checksum,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	// Write atomically: temp file + rename.
	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}

	success = true
	return nil
}

// Load reads and verifies a snapshot from a file.
//
// Description:
//
//	Loads a previously saved snapshot, verifying its version and
//	checksum. A missing file returns ErrNotFound, which callers treat as
//	a fresh start.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	path - File path to read.
//
// Outputs:
//
//	*Snapshot - The loaded snapshot. Never nil on success.
//	error - ErrNotFound, ErrVersionMismatch, ErrCorrupt, or a wrapped
//	read/parse failure.
func Load(ctx context.Context, path string) (*Snapshot, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path must not be empty", ErrInvalidInput)
	}

	_, span := tracer.Start(ctx, "storage.snapshot.load",
		trace.WithAttributes(attribute.String("snapshot.path", path)),
	)
	defer span.End()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var ss serializableSnapshot
	if err := json.Unmarshal(data, &ss); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	if ss.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrVersionMismatch, ss.Version, SnapshotVersion)
	}

	expected, err := computeChecksum(ss.Snapshot, ss.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("compute checksum for verification: %w", err)
	}
	if ss.Checksum != expected {
		span.SetStatus(codes.Error, ErrCorrupt.Error())
		return nil, ErrCorrupt
	}

	snap := ss.Snapshot
	if snap.Outcomes == nil {
		snap.Outcomes = make(outcome.Table)
	}
	return snap, nil
}
