// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"github.com/n7tools/finalmission/services/mission/codec"
	"github.com/n7tools/finalmission/services/mission/ruleset"
)

// UpgradeDecision is one decoded upgrade choice.
type UpgradeDecision struct {
	// Name is the upgrade's ruleset name.
	Name string

	// Purchased reports whether the upgrade was bought.
	Purchased bool

	// Picks lists the squad picks that deflected the death, in pick
	// order. Only present for declined deflectable upgrades.
	Picks []ruleset.Roster

	// InvertLast reports that the last entry of Picks was the candidate
	// left unpicked rather than picked.
	InvertLast bool
}

// Traversal is one decoded decision path. It names who was chosen at
// each decision, not who lived; pair it with the decoded outcome
// fingerprint for the full story.
type Traversal struct {
	// Loyalty marks the loyal candidates among those the traversal
	// touched.
	Loyalty ruleset.Roster

	// Upgrades holds one decision per ruleset upgrade, in ruleset order.
	Upgrades []UpgradeDecision

	// Tech is the tech specialist.
	Tech ruleset.Roster

	// FirstLeaderKnown reports whether the first-leader decision was on
	// the path; it only arises when the tech could be saved.
	FirstLeaderKnown bool

	// FirstLeaderIdeal reports that an ideal first leader was chosen.
	// Meaningful only when FirstLeaderKnown.
	FirstLeaderIdeal bool

	// Biotic is the biotic specialist.
	Biotic ruleset.Roster

	// SecondLeader is the second fireteam leader.
	SecondLeader ruleset.Roster

	// Escort is the crew escort, or Nobody when the crew was left
	// behind.
	Escort ruleset.Roster

	// Walked reports whether the long-walk unpick decision was on the
	// path.
	Walked bool

	// WalkUnpicks lists the candidates pulled out of the walk's death
	// slot, in priority order.
	WalkUnpicks []ruleset.Roster

	// WalkInvertLast reports that the last entry of WalkUnpicks stayed
	// picked rather than being pulled out.
	WalkInvertLast bool

	// Squad is the final two-member squad.
	Squad ruleset.Roster
}

// DecodeTraversal unpacks an encoded traversal against the rules that
// produced it. The field sequence mirrors the engine's record encoding;
// conditional fields are re-derived from the rules, so decoding a value
// under different rules yields garbage, not an error.
func DecodeTraversal(rules ruleset.Rules, encoded uint64) Traversal {
	layout := codec.NewLayout(rules.UniverseSize())
	d := codec.NewDecoder(layout, encoded)

	var tr Traversal
	tr.Loyalty = d.Roster()

	for _, u := range rules.Upgrades() {
		dec := UpgradeDecision{Name: u.Name, Purchased: d.Bool()}
		if !dec.Purchased && u.SquadChoice {
			dec.InvertLast, dec.Picks = d.Choices()
		}
		tr.Upgrades = append(tr.Upgrades, dec)
	}

	tr.Tech = d.Index()
	if rules.TechSavable(tr.Tech, tr.Loyalty|rules.AlwaysLoyal()) {
		tr.FirstLeaderKnown = true
		tr.FirstLeaderIdeal = d.Bool()
	}
	tr.Biotic = d.Index()
	tr.SecondLeader = d.Index()
	tr.Escort = d.Index()
	tr.Walked = d.Bool()
	if tr.Walked {
		tr.WalkInvertLast, tr.WalkUnpicks = d.Choices()
	}
	tr.Squad = d.Squad()
	return tr
}
