// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/n7tools/finalmission/pkg/bits"
	"github.com/n7tools/finalmission/services/mission/codec"
	"github.com/n7tools/finalmission/services/mission/ruleset"
	"github.com/n7tools/finalmission/services/mission/storage"
)

// Drill candidates. The drill rulesets below are small enough to
// enumerate exhaustively in a test while still reaching every decision
// in the sequence.
const (
	dA ruleset.Roster = 1 << iota
	dB
	dC
	dD
	dE
	dF
	dG
)

// drillRules is a configurable scenario for engine tests. Field values
// stand in for a real ruleset's hardcoded groups and priorities.
type drillRules struct {
	name        string
	universe    int
	required    ruleset.Roster
	recruitable ruleset.Roster
	eligible    ruleset.Roster
	alwaysLoyal ruleset.Roster
	minRecruits int
	subOut      ruleset.Roster
	subIn       ruleset.Roster
	upgrades    []ruleset.UpgradeRule
	biotics     ruleset.Roster
	saviors     ruleset.Roster
	techStar    ruleset.Roster
	idealLead   ruleset.Roster
	immortal    ruleset.Roster
	escorts     ruleset.Roster
	walkOrder   []ruleset.Roster
	escortMin   int

	// onDefense fires once per defended final squad, which lets a test
	// pause the engine at a deterministic point.
	onDefense func()
}

func (r *drillRules) Name() string                    { return r.name }
func (r *drillRules) UniverseSize() int               { return r.universe }
func (r *drillRules) Required() ruleset.Roster        { return r.required }
func (r *drillRules) Recruitable() ruleset.Roster     { return r.recruitable }
func (r *drillRules) LoyaltyEligible() ruleset.Roster { return r.eligible }
func (r *drillRules) AlwaysLoyal() ruleset.Roster     { return r.alwaysLoyal }
func (r *drillRules) MinRecruits() int                { return r.minRecruits }
func (r *drillRules) Upgrades() []ruleset.UpgradeRule { return r.upgrades }
func (r *drillRules) IdealLeaders() ruleset.Roster    { return r.idealLead }
func (r *drillRules) Biotics() ruleset.Roster         { return r.biotics }
func (r *drillRules) Escorts() ruleset.Roster         { return r.escorts }
func (r *drillRules) WalkPriority() []ruleset.Roster  { return r.walkOrder }

func (r *drillRules) Recruit(t ruleset.Team, recruits ruleset.Roster) ruleset.Team {
	return t.Add(recruits)
}

func (r *drillRules) Substitute(t ruleset.Team, loyal ruleset.Roster) (ruleset.Team, bool) {
	if r.subOut&t.Active == 0 || r.subOut&loyal == 0 || r.subIn&t.Active != 0 {
		return ruleset.Team{}, false
	}
	return t.Kill(r.subOut).Add(r.subIn), true
}

func (r *drillRules) TechSavable(tech, loyal ruleset.Roster) bool {
	return tech == r.techStar && tech&loyal != 0
}

func (r *drillRules) EscortAvailable(activeCount int) bool {
	return activeCount >= r.escortMin
}

func (r *drillRules) BioticSaves(biotic, loyal ruleset.Roster) bool {
	return biotic&r.saviors != 0 && biotic&loyal != 0
}

func (r *drillRules) LeaderSurvives(leader, loyal ruleset.Roster, activeCount int) bool {
	return leader&loyal != 0 || leader&r.immortal != 0 || activeCount < 4
}

func (r *drillRules) SquadVictims(squad, loyal ruleset.Roster) ruleset.Roster {
	return squad &^ loyal
}

func (r *drillRules) DefenseVictims(group, loyal ruleset.Roster) (ruleset.Roster, error) {
	if group == ruleset.Nobody {
		return ruleset.Nobody, ruleset.ErrEmptyDefense
	}
	if r.onDefense != nil {
		r.onDefense()
	}
	victims := ruleset.Nobody
	for _, member := range group.Split() {
		if member&loyal == 0 {
			victims |= member
			if victims.Count() == 2 {
				break
			}
		}
	}
	return victims, nil
}

// newDrillSmall is the fastest drill: one recruit set of three, one
// deflectable upgrade.
func newDrillSmall() *drillRules {
	return &drillRules{
		name:        "drill-small",
		universe:    6,
		required:    dA | dB,
		recruitable: dC | dD | dE,
		eligible:    ruleset.Roster(bits.Mask(5)),
		alwaysLoyal: dF,
		minRecruits: 3,
		subOut:      dC,
		subIn:       dF,
		upgrades: []ruleset.UpgradeRule{
			{Name: "shield", Priority: []ruleset.Roster{dD, dE, dF, dC, dB, dA}, SquadChoice: true},
		},
		biotics:   dB,
		saviors:   dB,
		techStar:  dD,
		idealLead: dA | dB,
		immortal:  dA,
		escorts:   ruleset.Roster(bits.Mask(6)) &^ dA,
		walkOrder: []ruleset.Roster{dD, dE, dF, dC, dB, dA},
		escortMin: 5,
	}
}

// newDrillWide adds a seventh candidate and multiple recruit set sizes,
// which exercises combination iteration and the loyalty skip for
// unrecruited candidates.
func newDrillWide() *drillRules {
	return &drillRules{
		name:        "drill-wide",
		universe:    7,
		required:    dA | dB,
		recruitable: dC | dD | dE | dF,
		eligible:    ruleset.Roster(bits.Mask(6)),
		alwaysLoyal: dG,
		minRecruits: 3,
		subOut:      dC,
		subIn:       dG,
		upgrades: []ruleset.UpgradeRule{
			{Name: "shield", Priority: []ruleset.Roster{dE, dF, dG, dD, dC, dB, dA}, SquadChoice: true},
		},
		biotics:   dB | dC,
		saviors:   dB,
		techStar:  dD,
		idealLead: dA | dB,
		immortal:  dA,
		escorts:   ruleset.Roster(bits.Mask(7)) &^ dA,
		walkOrder: []ruleset.Roster{dD, dE, dF, dG, dC, dB, dA},
		escortMin: 5,
	}
}

// newDrillPrep adds a plain, non-deflectable upgrade ahead of the
// deflectable one.
func newDrillPrep() *drillRules {
	r := newDrillWide()
	r.name = "drill-prep"
	r.minRecruits = 4
	r.upgrades = []ruleset.UpgradeRule{
		{Name: "armor", Priority: []ruleset.Roster{dD, dC, dB}},
		{Name: "shield", Priority: []ruleset.Roster{dE, dF, dG, dD, dC, dB, dA}, SquadChoice: true},
	}
	return r
}

func newTestEngine(t *testing.T, rules ruleset.Rules, path string) *Engine {
	t.Helper()
	eng, err := New(Config{Rules: rules, Path: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

// runToCompletion generates the full table for rules at path.
func runToCompletion(t *testing.T, rules ruleset.Rules, path string) *Engine {
	t.Helper()
	eng := newTestEngine(t, rules, path)
	if err := eng.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !eng.IsComplete() {
		t.Fatal("engine not complete after clean Generate")
	}
	return eng
}

func TestGenerateCompletes(t *testing.T) {
	eng := runToCompletion(t, newDrillSmall(), filepath.Join(t.TempDir(), "small.json"))

	stats := eng.Stats()
	if stats.Traversals == 0 {
		t.Fatal("no traversals recorded")
	}
	if stats.Outcomes == 0 {
		t.Fatal("no outcomes recorded")
	}
	if got := eng.Table().Traversals(); got != stats.Traversals {
		t.Fatalf("table holds %d traversals, stats say %d", got, stats.Traversals)
	}

	snap, err := storage.Load(context.Background(), eng.path)
	if err != nil {
		t.Fatalf("Load saved snapshot: %v", err)
	}
	if !SnapshotComplete(snap) {
		t.Fatal("saved snapshot not marked complete")
	}
	if !snap.Outcomes.Equal(eng.Table()) {
		t.Fatal("saved table differs from in-memory table")
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	first := runToCompletion(t, newDrillSmall(), filepath.Join(dir, "first.json"))
	second := runToCompletion(t, newDrillSmall(), filepath.Join(dir, "second.json"))

	if !first.Table().Equal(second.Table()) {
		t.Fatal("two clean runs produced different tables")
	}
}

func TestResumeMatchesUninterruptedRun(t *testing.T) {
	dir := t.TempDir()
	baseline := runToCompletion(t, newDrillSmall(), filepath.Join(dir, "baseline.json"))

	// Interrupted run: pause after a fixed number of defended squads per
	// segment, then resume from the snapshot in a fresh engine.
	const perSegment = 1000
	rules := newDrillSmall()
	path := filepath.Join(dir, "resumed.json")

	segments := 0
	for segments < 200 {
		eng := newTestEngine(t, rules, path)
		if err := eng.Load(context.Background()); err != nil {
			t.Fatalf("segment %d Load: %v", segments, err)
		}
		if eng.IsComplete() {
			break
		}
		calls := 0
		rules.onDefense = func() {
			calls++
			if calls == perSegment {
				eng.Control().RequestPause()
			}
		}
		err := eng.Generate(context.Background())
		segments++
		if err != nil && !errors.Is(err, ErrPaused) {
			t.Fatalf("segment %d Generate: %v", segments, err)
		}
	}
	if segments < 2 {
		t.Fatalf("run finished in %d segments, pause never took effect", segments)
	}

	final := newTestEngine(t, rules, path)
	if err := final.Load(context.Background()); err != nil {
		t.Fatalf("final Load: %v", err)
	}
	if !final.IsComplete() {
		t.Fatal("resumed run never completed")
	}
	if !final.Table().Equal(baseline.Table()) {
		t.Fatal("resumed table differs from uninterrupted table")
	}
	if got, want := final.Table().Traversals(), baseline.Table().Traversals(); got != want {
		t.Fatalf("resumed run recorded %d traversals, want %d", got, want)
	}
}

func TestPauseBeforeFirstCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paused.json")
	eng := newTestEngine(t, newDrillSmall(), path)
	eng.Control().RequestPause()

	if err := eng.Generate(context.Background()); !errors.Is(err, ErrPaused) {
		t.Fatalf("Generate = %v, want ErrPaused", err)
	}
	if eng.Stats().Traversals != 0 {
		t.Fatalf("recorded %d traversals before first checkpoint", eng.Stats().Traversals)
	}

	// The pre-start pause must leave a resumable snapshot behind.
	resumed := newTestEngine(t, newDrillSmall(), path)
	if err := resumed.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := resumed.Generate(context.Background()); err != nil {
		t.Fatalf("resumed Generate: %v", err)
	}
	fresh := runToCompletion(t, newDrillSmall(), filepath.Join(t.TempDir(), "fresh.json"))
	if !resumed.Table().Equal(fresh.Table()) {
		t.Fatal("table after pre-start pause differs from clean run")
	}
}

func TestCancelRequestsPause(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canceled.json")
	eng := newTestEngine(t, newDrillSmall(), path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := eng.Generate(ctx)
	if err != nil && !errors.Is(err, ErrPaused) {
		t.Fatalf("Generate = %v, want nil or ErrPaused", err)
	}
}

func TestGenerateOnCompleteTableIsANoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.json")
	runToCompletion(t, newDrillSmall(), path)

	eng := newTestEngine(t, newDrillSmall(), path)
	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !eng.IsComplete() {
		t.Fatal("complete snapshot loaded as incomplete")
	}
	before := eng.Stats().Traversals
	if err := eng.Generate(context.Background()); err != nil {
		t.Fatalf("Generate on complete table: %v", err)
	}
	if after := eng.Stats().Traversals; after != before {
		t.Fatalf("complete table grew from %d to %d traversals", before, after)
	}
}

func TestLoadRejectsForeignSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.json")
	snap := &storage.Snapshot{Ruleset: "someone-elses-rules"}
	if err := storage.Save(context.Background(), path, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	eng := newTestEngine(t, newDrillSmall(), path)
	if err := eng.Load(context.Background()); !errors.Is(err, ErrRulesetMismatch) {
		t.Fatalf("Load = %v, want ErrRulesetMismatch", err)
	}
}

func TestLoadMissingFileStartsFresh(t *testing.T) {
	eng := newTestEngine(t, newDrillSmall(), filepath.Join(t.TempDir(), "absent.json"))
	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load of missing file: %v", err)
	}
	if eng.IsComplete() {
		t.Fatal("fresh engine reports complete")
	}
	if eng.Stats().Traversals != 0 {
		t.Fatal("fresh engine reports traversals")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	tooWide := newDrillSmall()
	tooWide.universe = 22
	greedy := newDrillSmall()
	greedy.minRecruits = 9

	tests := []struct {
		name string
		cfg  Config
	}{
		{"nil rules", Config{Path: "x.json"}},
		{"empty path", Config{Rules: newDrillSmall()}},
		{"universe too wide", Config{Rules: tooWide, Path: "x.json"}},
		{"min recruits above pool", Config{Rules: greedy, Path: "x.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("New = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestWideDrillCoversRecruitSizes(t *testing.T) {
	eng := runToCompletion(t, newDrillWide(), filepath.Join(t.TempDir(), "wide.json"))

	if got := eng.Table().Traversals(); got != eng.Stats().Traversals {
		t.Fatalf("table holds %d traversals, stats say %d", got, eng.Stats().Traversals)
	}

	// Every recruit set leaves five or six candidates in play, plus one
	// when the substitution swap brought in the extra candidate.
	sizes := map[int]bool{}
	for fp := range eng.Table() {
		o := codec.DecodeOutcome(eng.Layout(), fp)
		sizes[(o.Spared | o.Dead).Count()] = true
	}
	for _, want := range []int{5, 6, 7} {
		if !sizes[want] {
			t.Errorf("no outcome with %d settled candidates", want)
		}
	}
}

func TestOutcomeInvariants(t *testing.T) {
	rules := newDrillPrep()
	eng := runToCompletion(t, rules, filepath.Join(t.TempDir(), "prep.json"))

	for fp, rec := range eng.Table() {
		o := codec.DecodeOutcome(eng.Layout(), fp)
		if o.Spared&o.Dead != ruleset.Nobody {
			t.Fatalf("fingerprint %#x spares and kills %s", fp, overlap(o))
		}
		if rules.Required()&^(o.Spared|o.Dead) != ruleset.Nobody {
			t.Fatalf("fingerprint %#x lost a required candidate", fp)
		}
		if o.Loyalty&^(o.Spared&rules.LoyaltyEligible()) != ruleset.Nobody {
			t.Fatalf("fingerprint %#x records loyalty outside spared eligibles", fp)
		}

		tr := DecodeTraversal(rules, rec.Traversal)
		if tr.Squad.Count() != 2 {
			t.Fatalf("traversal %#x decodes a %d-member squad", rec.Traversal, tr.Squad.Count())
		}
		if tr.Tech.Count() != 1 || tr.Biotic.Count() != 1 || tr.SecondLeader.Count() != 1 {
			t.Fatalf("traversal %#x decodes empty specialist slots", rec.Traversal)
		}
		if tr.Biotic&^rules.Biotics() != ruleset.Nobody {
			t.Fatalf("traversal %#x decodes a non-biotic specialist", rec.Traversal)
		}
		if len(tr.Upgrades) != len(rules.Upgrades()) {
			t.Fatalf("traversal %#x decodes %d upgrades, want %d",
				rec.Traversal, len(tr.Upgrades), len(rules.Upgrades()))
		}
	}
}

func overlap(o codec.Outcome) string {
	return fmt.Sprintf("%#x", uint64(o.Spared&o.Dead))
}
