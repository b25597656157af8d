// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import "github.com/n7tools/finalmission/services/mission/storage"

// Checkpoint frame keys, in nesting order of the decisions that own
// them. Each decision level writes exactly one key, so a frame path
// never repeats a key.
const (
	KeyRecruitCount = "recruit_count"
	KeyRecruits     = "recruits"
	KeyLoyalty      = "loyalty"
	KeySubstitute   = "substitute"
	KeyTech         = "tech"
	KeyFirstLeader  = "first_leader"
	KeyBiotic       = "biotic"
	KeySecondLeader = "second_leader"
	KeyCrew         = "crew"
	KeyEscort       = "escort"
	KeyWalkUnpick   = "walk_unpick"
	KeyFinalSquad   = "final_squad"

	// pickSuffix derives the deflection-pick key from an upgrade name.
	pickSuffix = "_pick"
)

// frameStack holds the live checkpoint path plus the loaded path being
// replayed. The live path grows by Set before each descent and shrinks
// by Clear when a decision level's loop completes, so at any save point
// it runs from the root decision to the first unvisited branch.
//
// The loaded path is consumed by Read through a cursor: each decision
// level's first Read takes the next loaded frame if the keys match.
// Frames are loaded in nesting order and keys never repeat, so a
// mismatch means the level was not on the stored path and the default
// applies. Once the cursor passes a frame it never matches again, which
// is what makes the resume restriction apply only once per run.
type frameStack struct {
	frames []storage.Frame
	resume []storage.Frame
	cursor int
}

func newFrameStack(resume []storage.Frame) *frameStack {
	return &frameStack{resume: resume}
}

// Read returns the next loaded frame's value when its key matches,
// advancing the cursor; otherwise def.
func (s *frameStack) Read(key string, def uint64) uint64 {
	if s.cursor < len(s.resume) && s.resume[s.cursor].Key == key {
		v := s.resume[s.cursor].Value
		s.cursor++
		return v
	}
	return def
}

// Set writes the frame for key: replacing the top frame when it already
// holds the key, pushing otherwise.
func (s *frameStack) Set(key string, value uint64) {
	if n := len(s.frames); n > 0 && s.frames[n-1].Key == key {
		s.frames[n-1].Value = value
		return
	}
	s.frames = append(s.frames, storage.Frame{Key: key, Value: value})
}

// Clear pops the top frame if it holds the key. A level that never
// wrote its key clears nothing.
func (s *frameStack) Clear(key string) {
	if n := len(s.frames); n > 0 && s.frames[n-1].Key == key {
		s.frames = s.frames[:n-1]
	}
}

// Get returns the value for key anywhere on the live path.
func (s *frameStack) Get(key string) (uint64, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Key == key {
			return s.frames[i].Value, true
		}
	}
	return 0, false
}

// Snapshot returns a copy of the live path for persistence.
func (s *frameStack) Snapshot() []storage.Frame {
	out := make([]storage.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}
