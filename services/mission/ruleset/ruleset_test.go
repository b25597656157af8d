// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ruleset

import (
	"errors"
	"testing"
)

const (
	cA Roster = 1 << iota
	cB
	cC
	cD
)

func TestRosterHelpers(t *testing.T) {
	r := cA | cC | cD
	if got := r.Count(); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
	if got := r.First(); got != cA {
		t.Errorf("First() = %#x, want %#x", got, cA)
	}
	if got := (cC | cD).Below(); got != cA|cB {
		t.Errorf("Below() = %#x, want %#x", got, cA|cB)
	}
	parts := r.Split()
	want := []Roster{cA, cC, cD}
	if len(parts) != len(want) {
		t.Fatalf("Split() = %v, want %v", parts, want)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("Split()[%d] = %#x, want %#x", i, parts[i], want[i])
		}
	}
	if got := Nobody.First(); got != Nobody {
		t.Errorf("Nobody.First() = %#x, want Nobody", got)
	}
}

func TestTeamTransitions(t *testing.T) {
	team := Team{Active: cA | cB | cC}

	killed := team.Kill(cB)
	if killed.Active != cA|cC || killed.Dead != cB || killed.Spared != Nobody {
		t.Errorf("Kill: %+v", killed)
	}

	spared := team.Spare(cC)
	if spared.Active != cA|cB || spared.Spared != cC || spared.Dead != Nobody {
		t.Errorf("Spare: %+v", spared)
	}

	added := team.Add(cD)
	if added.Active != cA|cB|cC|cD {
		t.Errorf("Add: %+v", added)
	}

	// The original team is untouched by any transition.
	if team.Active != cA|cB|cC || team.Dead != Nobody || team.Spared != Nobody {
		t.Errorf("transitions mutated the receiver: %+v", team)
	}
}

func TestKillAndSpareActive(t *testing.T) {
	team := Team{Active: cA | cB | cC, Dead: cD}
	final := team.KillAndSpareActive(cB)
	if final.Active != Nobody {
		t.Errorf("Active = %#x, want Nobody", final.Active)
	}
	if final.Dead != cB|cD {
		t.Errorf("Dead = %#x, want %#x", final.Dead, cB|cD)
	}
	if final.Spared != cA|cC {
		t.Errorf("Spared = %#x, want %#x", final.Spared, cA|cC)
	}
}

func TestVictim(t *testing.T) {
	priority := []Roster{cC, cA, cD}

	tests := []struct {
		name string
		team Roster
		want Roster
	}{
		{"first entry present", cA | cC, cC},
		{"falls through", cA | cB, cA},
		{"last entry", cB | cD, cD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Victim(tt.team, priority)
			if err != nil {
				t.Fatalf("Victim: %v", err)
			}
			if got != tt.want {
				t.Errorf("Victim = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestVictimNoMatch(t *testing.T) {
	_, err := Victim(cB, []Roster{cA, cC})
	if !errors.Is(err, ErrNoVictim) {
		t.Fatalf("Victim error = %v, want ErrNoVictim", err)
	}
}
