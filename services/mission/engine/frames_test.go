// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"testing"

	"github.com/n7tools/finalmission/services/mission/storage"
)

func TestFrameStackSetReplacesTop(t *testing.T) {
	s := newFrameStack(nil)
	s.Set(KeyTech, 1)
	s.Set(KeyTech, 2)
	s.Set(KeyBiotic, 4)
	s.Set(KeyBiotic, 8)

	want := []storage.Frame{
		{Key: KeyTech, Value: 2},
		{Key: KeyBiotic, Value: 8},
	}
	got := s.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("got %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFrameStackClearPopsOnlyMatchingTop(t *testing.T) {
	s := newFrameStack(nil)
	s.Set(KeyTech, 1)
	s.Set(KeyBiotic, 2)

	s.Clear(KeyTech) // not on top, no-op
	if _, ok := s.Get(KeyTech); !ok {
		t.Fatal("Clear removed a frame that was not on top")
	}

	s.Clear(KeyBiotic)
	if _, ok := s.Get(KeyBiotic); ok {
		t.Fatal("Clear left the top frame in place")
	}
	s.Clear(KeyBiotic) // already gone, no-op
	if v, ok := s.Get(KeyTech); !ok || v != 1 {
		t.Fatalf("Get(tech) = %d, %v; want 1, true", v, ok)
	}
}

func TestFrameStackReadConsumesResumeCursor(t *testing.T) {
	resume := []storage.Frame{
		{Key: KeyRecruitCount, Value: 4},
		{Key: KeyRecruits, Value: 0b1100},
		{Key: KeyTech, Value: 0b0100},
	}
	s := newFrameStack(resume)

	if v := s.Read(KeyRecruitCount, 3); v != 4 {
		t.Fatalf("Read(recruit_count) = %d, want stored 4", v)
	}
	if v := s.Read(KeyRecruits, 0); v != 0b1100 {
		t.Fatalf("Read(recruits) = %d, want stored %d", v, 0b1100)
	}

	// The loyalty level was not on the stored path. Its read must not
	// consume the tech frame sitting at the cursor.
	if v := s.Read(KeyLoyalty, 7); v != 7 {
		t.Fatalf("Read(loyalty) = %d, want default 7", v)
	}
	if v := s.Read(KeyTech, 0); v != 0b0100 {
		t.Fatalf("Read(tech) = %d, want stored %d", v, 0b0100)
	}

	// Cursor exhausted: every later read yields the default, even for
	// keys that were on the stored path.
	if v := s.Read(KeyRecruits, 9); v != 9 {
		t.Fatalf("Read(recruits) after exhaustion = %d, want default 9", v)
	}
}

func TestFrameStackSnapshotIsACopy(t *testing.T) {
	s := newFrameStack(nil)
	s.Set(KeyTech, 1)

	snap := s.Snapshot()
	s.Set(KeyTech, 99)
	if snap[0].Value != 1 {
		t.Fatalf("snapshot value = %d, want 1 after later Set", snap[0].Value)
	}
}
