// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package me2 implements the Mass Effect 2 suicide-mission ruleset.
//
// Thirteen allies occupy one bit each. Five are required, seven are
// recruitable, and Morinth only joins by replacing a loyal Samara. The
// decision rules here reproduce the game's survival mechanics: upgrade
// victims, specialist deaths, the crew escort, the long walk, and the
// final defense toll.
package me2

import (
	"strings"

	"github.com/n7tools/finalmission/services/mission/ruleset"
)

// Ally bit assignments. Order is fixed: encoded data depends on it.
const (
	Garrus ruleset.Roster = 1 << iota
	Jacob
	Miranda
	Jack
	Mordin
	Grunt
	Kasumi
	Legion
	Samara
	Tali
	Thane
	Zaeed
	Morinth
)

// UniverseSize is the number of ally bit positions.
const UniverseSize = 13

// Ally groups.
const (
	Everyone = ruleset.Roster(1<<UniverseSize) - 1

	// Required allies are on the team from the start.
	Required = Garrus | Jack | Jacob | Miranda | Mordin

	// Optional allies join through recruitment or substitution.
	Optional = Everyone &^ Required

	// Recruitable excludes Morinth, who only joins by replacing Samara.
	Recruitable = Optional &^ Morinth

	// LoyaltyEligible excludes Morinth, who is always loyal.
	LoyaltyEligible = Everyone &^ Morinth

	IdealLeaders = Garrus | Jacob | Miranda
	IdealTechs   = Kasumi | Legion | Tali
	IdealBiotics = Jack | Samara | Morinth

	// Biotics who can be chosen as the biotic specialist.
	Biotics = IdealBiotics | Jacob | Miranda | Thane

	// Escorts who can be sent back with the crew. Miranda cannot.
	Escorts = Everyone &^ Miranda

	// ImmortalLeaders survive the second fireteam regardless of loyalty.
	ImmortalLeaders = Miranda
)

// MinRecruits is the smallest number of optional allies that must be
// recruited to reach the final mission.
const MinRecruits = 3

var allyNames = map[ruleset.Roster]string{
	Garrus:  "Garrus",
	Jacob:   "Jacob",
	Miranda: "Miranda",
	Jack:    "Jack",
	Mordin:  "Mordin",
	Grunt:   "Grunt",
	Kasumi:  "Kasumi",
	Legion:  "Legion",
	Samara:  "Samara",
	Tali:    "Tali",
	Thane:   "Thane",
	Zaeed:   "Zaeed",
	Morinth: "Morinth",
}

// FormatRoster renders a roster as a comma-separated list of ally names
// in bit order. The empty roster renders as "nobody".
func FormatRoster(r ruleset.Roster) string {
	if r == ruleset.Nobody {
		return "nobody"
	}
	parts := r.Split()
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name, ok := allyNames[p]; ok {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

// Config holds scenario policy knobs.
type Config struct {
	// AllowEscortAtFour permits sending an escort when exactly four
	// allies remain active. The game has not been confirmed to allow
	// this; the default forbids it, which matches the assumption that an
	// escort cannot be spared from a minimum-strength team.
	AllowEscortAtFour bool
}

// Scenario implements ruleset.Rules for the suicide mission.
type Scenario struct {
	cfg Config
}

// New returns the suicide-mission ruleset with the given policy.
func New(cfg Config) *Scenario {
	return &Scenario{cfg: cfg}
}

// Name identifies the scenario and its escort policy. Outcome data
// generated under one policy is not comparable to the other.
func (s *Scenario) Name() string {
	if s.cfg.AllowEscortAtFour {
		return "me2-escort4"
	}
	return "me2"
}

func (s *Scenario) UniverseSize() int { return UniverseSize }

func (s *Scenario) Required() ruleset.Roster { return Required }

func (s *Scenario) Recruitable() ruleset.Roster { return Recruitable }

func (s *Scenario) LoyaltyEligible() ruleset.Roster { return LoyaltyEligible }

func (s *Scenario) AlwaysLoyal() ruleset.Roster { return Morinth }

func (s *Scenario) MinRecruits() int { return MinRecruits }

// Recruit activates the given allies. Recruiting Morinth kills Samara.
func (s *Scenario) Recruit(t ruleset.Team, r ruleset.Roster) ruleset.Team {
	t = t.Add(r)
	if r&Morinth != 0 {
		t = t.Kill(Samara)
	}
	return t
}

// Substitute replaces a loyal, active Samara with Morinth.
func (s *Scenario) Substitute(t ruleset.Team, loyal ruleset.Roster) (ruleset.Team, bool) {
	if Samara&t.Active&loyal == 0 {
		return t, false
	}
	return s.Recruit(t, Morinth), true
}

// Upgrades lists the Normandy upgrade decisions in mission order.
func (s *Scenario) Upgrades() []ruleset.UpgradeRule {
	return []ruleset.UpgradeRule{
		{Name: "armor", Priority: noArmorUpgrade},
		// Declining the shield upgrade guarantees a death in the cargo
		// bay, but the squad selection deflects it down the priority
		// list.
		{Name: "shield", Priority: noShieldUpgrade, SquadChoice: true},
		{Name: "weapon", Priority: noWeaponUpgrade},
	}
}

func (s *Scenario) TechSavable(tech, loyal ruleset.Roster) bool {
	return tech&loyal&IdealTechs != 0
}

func (s *Scenario) IdealLeaders() ruleset.Roster { return IdealLeaders }

func (s *Scenario) Biotics() ruleset.Roster { return Biotics }

func (s *Scenario) Escorts() ruleset.Roster { return Escorts }

func (s *Scenario) EscortAvailable(activeCount int) bool {
	if s.cfg.AllowEscortAtFour {
		return activeCount >= 4
	}
	return activeCount > 4
}

func (s *Scenario) BioticSaves(biotic, loyal ruleset.Roster) bool {
	return biotic&loyal&IdealBiotics != 0
}

func (s *Scenario) WalkPriority() []ruleset.Roster { return theLongWalk }

// LeaderSurvives reports whether the second fireteam leader lives: loyal
// and ideal, special-cased (Miranda), or leading a team of fewer than
// four.
func (s *Scenario) LeaderSurvives(leader, loyal ruleset.Roster, activeCount int) bool {
	if leader&loyal&IdealLeaders != 0 {
		return true
	}
	if leader&ImmortalLeaders != 0 {
		return true
	}
	return activeCount < 4
}

// SquadVictims returns the disloyal members of the final squad, who die
// in the last fight.
func (s *Scenario) SquadVictims(squad, loyal ruleset.Roster) ruleset.Roster {
	return squad &^ loyal
}

// DefenseVictims applies the hold-the-line toll to the defending allies.
func (s *Scenario) DefenseVictims(group, loyal ruleset.Roster) (ruleset.Roster, error) {
	return defenseVictims(group, loyal)
}

var _ ruleset.Rules = (*Scenario)(nil)
