// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package badger provides a BadgerDB-backed outcome index.
//
// The snapshot file is the engine's source of truth; it is rewritten
// whole on every save. For completed runs with millions of outcomes,
// point lookups against the JSON file mean parsing all of it. The index
// trades one bulk import for ~100µs keyed reads.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/n7tools/finalmission/services/mission/outcome"
)

// ErrNotIndexed indicates a fingerprint with no record in the index.
var ErrNotIndexed = errors.New("fingerprint not indexed")

// outcomePrefix namespaces outcome records in the key space.
var outcomePrefix = []byte("o:")

// Config holds configuration for a BadgerDB instance.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns defaults for an on-disk index.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns configuration for testing.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open creates and opens the index database.
//
// Description:
//
//	Opens a BadgerDB database at the configured path, or in memory if
//	InMemory is true. Creates the directory if it doesn't exist.
//
// Inputs:
//
//	cfg - Database configuration. Path is required unless InMemory.
//
// Outputs:
//
//	*Index - The opened index. Caller must call Close() when done.
//	error - Non-nil if the path is invalid or the database cannot open.
//
// Thread Safety: The returned *Index is safe for concurrent use.
func Open(cfg Config) (*Index, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent index")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create index directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	return &Index{db: db}, nil
}

// Index is a keyed view over an outcome table.
type Index struct {
	db *badger.DB
}

// Close releases the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

func outcomeKey(fingerprint uint64) []byte {
	key := make([]byte, len(outcomePrefix)+8)
	copy(key, outcomePrefix)
	binary.BigEndian.PutUint64(key[len(outcomePrefix):], fingerprint)
	return key
}

func recordValue(rec outcome.Record) []byte {
	val := make([]byte, 16)
	binary.BigEndian.PutUint64(val[:8], rec.Count)
	binary.BigEndian.PutUint64(val[8:], rec.Traversal)
	return val
}

func parseRecord(val []byte) (outcome.Record, error) {
	if len(val) != 16 {
		return outcome.Record{}, fmt.Errorf("malformed record value: %d bytes", len(val))
	}
	return outcome.Record{
		Count:     binary.BigEndian.Uint64(val[:8]),
		Traversal: binary.BigEndian.Uint64(val[8:]),
	}, nil
}

// Import writes every record of the table into the index.
//
// Description:
//
//	Bulk-loads the table through a write batch. Existing records for the
//	same fingerprints are overwritten, so re-importing a newer snapshot
//	is safe.
//
// Inputs:
//
//	table - The outcome table to index. May be empty.
//
// Outputs:
//
//	error - Non-nil if the batch fails to commit.
func (ix *Index) Import(table outcome.Table) error {
	wb := ix.db.NewWriteBatch()
	defer wb.Cancel()

	for fp, rec := range table {
		if err := wb.Set(outcomeKey(fp), recordValue(rec)); err != nil {
			return fmt.Errorf("batch outcome %#x: %w", fp, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush outcome batch: %w", err)
	}
	return nil
}

// Lookup returns the record for one fingerprint.
//
// Outputs:
//
//	outcome.Record - The indexed record.
//	error - ErrNotIndexed if the fingerprint has no record.
func (ix *Index) Lookup(fingerprint uint64) (outcome.Record, error) {
	var rec outcome.Record
	err := ix.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(outcomeKey(fingerprint))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %#x", ErrNotIndexed, fingerprint)
		}
		if err != nil {
			return fmt.Errorf("get outcome %#x: %w", fingerprint, err)
		}
		return item.Value(func(val []byte) error {
			rec, err = parseRecord(val)
			return err
		})
	})
	return rec, err
}

// Each calls fn for every indexed record, in fingerprint order.
// Iteration stops at the first non-nil error from fn, which is returned.
func (ix *Index) Each(fn func(fingerprint uint64, rec outcome.Record) error) error {
	return ix.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = outcomePrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			fp := binary.BigEndian.Uint64(item.Key()[len(outcomePrefix):])
			var rec outcome.Record
			err := item.Value(func(val []byte) error {
				var perr error
				rec, perr = parseRecord(val)
				return perr
			})
			if err != nil {
				return err
			}
			if err := fn(fp, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len returns the number of indexed records.
func (ix *Index) Len() (int, error) {
	count := 0
	err := ix.Each(func(uint64, outcome.Record) error {
		count++
		return nil
	})
	return count, err
}
