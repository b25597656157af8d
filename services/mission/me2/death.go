// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package me2

import (
	"fmt"

	"github.com/n7tools/finalmission/services/mission/ruleset"
)

// =============================================================================
// Death priorities
// =============================================================================
//
// The following lists give the order in which allies are selected for
// death when certain conditions are met.

// The Silaris Armor upgrade was not purchased.
var noArmorUpgrade = []ruleset.Roster{Jack}

// The Cyclonic Shields upgrade was not purchased.
var noShieldUpgrade = []ruleset.Roster{
	Kasumi, Legion, Tali, Thane, Garrus, Zaeed, Grunt, Samara, Morinth,
}

// The Thanix Cannon upgrade was not purchased.
var noWeaponUpgrade = []ruleset.Roster{
	Thane, Garrus, Zaeed, Grunt, Jack, Samara, Morinth,
}

// A disloyal or non-specialist biotic was chosen for the long walk.
var theLongWalk = []ruleset.Roster{
	Thane, Jack, Garrus, Legion, Grunt, Samara, Jacob, Mordin, Tali,
	Kasumi, Zaeed, Morinth,
}

// The average defense score was too low for the allies holding the line.
// Unlike the other priorities, disloyal allies are taken before loyal
// ones (see defenseVictims).
var defensePriority = []ruleset.Roster{
	Mordin, Tali, Kasumi, Jack, Miranda, Jacob, Garrus, Samara, Morinth,
	Legion, Thane, Zaeed, Grunt,
}

// =============================================================================
// Defense toll
// =============================================================================

// Innate defense scores for allies holding the line. A disloyal ally's
// score is reduced by one.
var defenseScores = map[ruleset.Roster]int{
	Garrus:  4,
	Grunt:   4,
	Jack:    1,
	Jacob:   2,
	Kasumi:  1,
	Legion:  2,
	Miranda: 2,
	Mordin:  1,
	Samara:  2,
	Tali:    1,
	Thane:   2,
	Zaeed:   4,
	Morinth: 2,
}

// defenseScore computes the mean defense score of the group.
func defenseScore(group, loyal ruleset.Roster) (float64, error) {
	members := group.Split()
	if len(members) == 0 {
		return 0, fmt.Errorf("%w: score", ruleset.ErrEmptyDefense)
	}
	sum := 0
	for _, ally := range members {
		score := defenseScores[ally]
		if ally&loyal == 0 {
			score--
		}
		sum += score
	}
	return float64(sum) / float64(len(members)), nil
}

// defenseToll returns how many defenders die given the group's mean
// score. The thresholds depend on the group size; groups larger than
// four share one formula.
func defenseToll(group, loyal ruleset.Roster) (int, error) {
	score, err := defenseScore(group, loyal)
	if err != nil {
		return 0, err
	}
	switch group.Count() {
	case 1:
		if score < 2 {
			return 1, nil
		}
		return 0, nil
	case 2:
		switch {
		case score <= 0:
			return 2, nil
		case score < 2:
			return 1, nil
		}
		return 0, nil
	case 3:
		switch {
		case score <= 0:
			return 3, nil
		case score < 1:
			return 2, nil
		case score < 2:
			return 1, nil
		}
		return 0, nil
	case 4:
		switch {
		case score <= 0:
			return 4, nil
		case score < 0.5:
			return 3, nil
		case score <= 1:
			return 2, nil
		case score < 2:
			return 1, nil
		}
		return 0, nil
	default:
		switch {
		case score < 0.5:
			return 3, nil
		case score < 1.5:
			return 2, nil
		case score < 2:
			return 1, nil
		}
		return 0, nil
	}
}

// defenseVictims selects the defenders who die, disloyal allies first,
// each group in defense priority order.
func defenseVictims(group, loyal ruleset.Roster) (ruleset.Roster, error) {
	toll, err := defenseToll(group, loyal)
	if err != nil {
		return ruleset.Nobody, err
	}
	victims := ruleset.Nobody
	for _, ally := range defensePriority {
		if toll == 0 {
			break
		}
		if ally&group&^loyal != 0 {
			victims |= ally
			toll--
		}
	}
	for _, ally := range defensePriority {
		if toll == 0 {
			break
		}
		if ally&group&loyal != 0 {
			victims |= ally
			toll--
		}
	}
	return victims, nil
}
