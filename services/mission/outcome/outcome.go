// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package outcome accumulates traversal results keyed by outcome
// fingerprint.
package outcome

// Record is the accumulated result for one fingerprint.
type Record struct {
	// Count is the number of traversals that produced the fingerprint.
	Count uint64 `json:"count"`

	// Traversal is the encoded decision sequence of the most recent such
	// traversal. Earlier representatives are overwritten; any retained
	// representative decodes to the recorded fingerprint, so last-write
	// -wins loses no information the table promises to keep.
	Traversal uint64 `json:"traversal"`
}

// Table maps outcome fingerprints to their records.
type Table map[uint64]Record

// Add records one traversal for the fingerprint, incrementing its count
// and replacing its representative traversal.
func (t Table) Add(fingerprint, traversal uint64) {
	rec := t[fingerprint]
	rec.Count++
	rec.Traversal = traversal
	t[fingerprint] = rec
}

// Traversals returns the total number of recorded traversals.
func (t Table) Traversals() uint64 {
	var sum uint64
	for _, rec := range t {
		sum += rec.Count
	}
	return sum
}

// Equal reports whether two tables hold identical records.
func (t Table) Equal(other Table) bool {
	if len(t) != len(other) {
		return false
	}
	for fp, rec := range t {
		if other[fp] != rec {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for fp, rec := range t {
		out[fp] = rec
	}
	return out
}
