// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ruleset defines the candidate roster model and the rules
// contract the mission engine enumerates against.
//
// A ruleset describes one mission scenario: who can be recruited, which
// decisions cost lives, and how victims are chosen. The engine itself is
// scenario-agnostic; everything scenario-specific flows through the Rules
// interface.
package ruleset

import (
	"errors"
	"fmt"

	"github.com/n7tools/finalmission/pkg/bits"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNoVictim indicates a priority list produced no victim for a
	// non-empty roster. Priority lists are meant to cover every candidate
	// who can reach the decision they back, so this is a rules defect.
	ErrNoVictim = errors.New("no victim in priority list")

	// ErrEmptyDefense indicates a defense toll was requested for an empty
	// group.
	ErrEmptyDefense = errors.New("zero defending candidates")
)

// =============================================================================
// Roster
// =============================================================================

// Roster is a set of candidates, one bit per candidate. Bit positions are
// assigned by the ruleset; position 0 is the first candidate.
type Roster uint64

// Nobody is the empty roster.
const Nobody Roster = 0

// Count returns the number of candidates in the roster.
func (r Roster) Count() int {
	return bits.Count(uint64(r))
}

// Split returns each member of the roster as its own single-candidate
// roster, in ascending bit order.
func (r Roster) Split() []Roster {
	parts := bits.Split(uint64(r))
	out := make([]Roster, len(parts))
	for i, p := range parts {
		out[i] = Roster(p)
	}
	return out
}

// Below returns a mask of every bit strictly below the roster's lowest
// member. It restricts iteration ranges when resuming from a checkpoint.
func (r Roster) Below() Roster {
	return Roster(bits.MTZ(uint64(r)))
}

// First returns the roster's lowest member, or Nobody.
func (r Roster) First() Roster {
	return Roster(bits.FSB(uint64(r)))
}

// =============================================================================
// Team
// =============================================================================

// Team tracks candidate fates during one traversal. Values are immutable;
// operative methods return a new Team, which keeps the recursion
// stack-friendly.
type Team struct {
	Active Roster
	Dead   Roster
	Spared Roster
}

// Kill returns a Team where the given candidates are dead.
func (t Team) Kill(r Roster) Team {
	return Team{Active: t.Active &^ r, Dead: t.Dead | r, Spared: t.Spared}
}

// Spare returns a Team where the given candidates are spared.
func (t Team) Spare(r Roster) Team {
	return Team{Active: t.Active &^ r, Dead: t.Dead, Spared: t.Spared | r}
}

// KillAndSpareActive returns a terminal Team where the given candidates
// are dead and every other active candidate is spared.
func (t Team) KillAndSpareActive(r Roster) Team {
	return Team{
		Active: Nobody,
		Dead:   t.Dead | r,
		Spared: t.Spared | (t.Active &^ r),
	}
}

// Add returns a Team where the given candidates are active. Rulesets with
// recruitment side effects apply them in Rules.Recruit, not here.
func (t Team) Add(r Roster) Team {
	return Team{Active: t.Active | r, Dead: t.Dead, Spared: t.Spared}
}

// =============================================================================
// Rules
// =============================================================================

// UpgradeRule describes one binary preparation decision. Declining a
// purchased upgrade kills the first available candidate in Priority,
// unless SquadChoice is set, in which case the engine enumerates the
// squad selections that deflect the death onto later priority entries.
type UpgradeRule struct {
	// Name keys the decision's checkpoint frame and its slot in encoded
	// traversals. Must be unique within the ruleset, lowercase.
	Name string

	// Priority is the victim order when the upgrade is declined.
	Priority []Roster

	// SquadChoice marks the decline as deflectable by squad selection.
	SquadChoice bool
}

// Rules defines one mission scenario.
//
// Rosters returned by group methods must fit in UniverseSize bits. The
// loyalty counter enumerated by the engine starts at AlwaysLoyal and
// counts up to the full universe mask, so AlwaysLoyal must occupy the
// highest bit positions of the universe (or be empty).
type Rules interface {
	// Name identifies the ruleset, including any policy variations that
	// change the outcome space. Snapshots record it and refuse to resume
	// under a different name.
	Name() string

	// UniverseSize is the number of candidate bit positions.
	UniverseSize() int

	// Required is the roster active before any recruitment choice.
	Required() Roster

	// Recruitable is the roster the recruitment decision draws from.
	Recruitable() Roster

	// LoyaltyEligible is the roster whose loyalty is enumerated.
	LoyaltyEligible() Roster

	// AlwaysLoyal is the roster treated as loyal in every assignment.
	AlwaysLoyal() Roster

	// MinRecruits is the smallest recruitment size.
	MinRecruits() int

	// Recruit activates the given candidates, applying any recruitment
	// side effects.
	Recruit(t Team, r Roster) Team

	// Substitute returns the alternate team explored as an extra sibling
	// branch after the base branch, and whether it applies.
	Substitute(t Team, loyal Roster) (Team, bool)

	// Upgrades lists the binary preparation decisions in order.
	Upgrades() []UpgradeRule

	// TechSavable reports whether the given tech specialist can survive,
	// making the first-leader decision meaningful.
	TechSavable(tech, loyal Roster) bool

	// IdealLeaders is the roster of candidates whose loyal selection as
	// first leader saves a savable tech.
	IdealLeaders() Roster

	// Biotics is the roster selectable as the biotic specialist.
	Biotics() Roster

	// Escorts is the roster selectable as the crew escort.
	Escorts() Roster

	// EscortAvailable reports whether an escort may be sent when the
	// active team has the given size.
	EscortAvailable(activeCount int) bool

	// BioticSaves reports whether the given biotic specialist prevents
	// the long-walk death entirely.
	BioticSaves(biotic, loyal Roster) bool

	// WalkPriority is the victim order for the long-walk death.
	WalkPriority() []Roster

	// LeaderSurvives reports whether the second leader survives the walk,
	// given the loyalty assignment and the active team size (leader
	// included).
	LeaderSurvives(leader, loyal Roster, activeCount int) bool

	// SquadVictims returns the members of the chosen final squad who die
	// at the terminal decision.
	SquadVictims(squad, loyal Roster) Roster

	// DefenseVictims returns the defending candidates who die, by the
	// ruleset's toll rules. The group must not be empty.
	DefenseVictims(group, loyal Roster) (Roster, error)
}

// =============================================================================
// Victim selection
// =============================================================================

// Victim returns the first candidate of priority present in team.
//
// Description:
//
//	Walks the priority list in order and returns the first entry that
//	intersects the team. Priority entries are single candidates.
//
// Inputs:
//
//	team - The candidates the death can fall on. Must intersect priority.
//	priority - Victim order for the triggering condition.
//
// Outputs:
//
//	Roster - The single victim.
//	error - ErrNoVictim if no entry intersects the team.
func Victim(team Roster, priority []Roster) (Roster, error) {
	for _, p := range priority {
		if p&team != 0 {
			return p, nil
		}
	}
	return Nobody, fmt.Errorf("%w: team %#x", ErrNoVictim, uint64(team))
}
