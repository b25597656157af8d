// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engine enumerates every decision traversal of a mission
// ruleset and accumulates the outcomes.
//
// The enumeration is a depth-first recursion over the ruleset's decision
// sequence. Each decision level writes a checkpoint frame before
// descending into a branch and clears it when its loop completes, so the
// frame path always names the first branch whose subtree has unvisited
// traversals. Persisting that path together with the outcome table makes
// the run resumable: a fresh process replays the path, skips everything
// before it, and continues without recounting a single traversal.
//
// A snapshot file belongs to one engine at a time. Running two engines
// against one file is undefined behavior.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/n7tools/finalmission/pkg/bits"
	"github.com/n7tools/finalmission/services/mission/codec"
	"github.com/n7tools/finalmission/services/mission/outcome"
	"github.com/n7tools/finalmission/services/mission/ruleset"
	"github.com/n7tools/finalmission/services/mission/storage"
)

var tracer = otel.Tracer("finalmission/engine")

var (
	// ErrPaused reports that generation stopped at a checkpoint on
	// request. The snapshot was saved; the run is resumable.
	ErrPaused = errors.New("generation paused")

	// ErrRulesetMismatch indicates a snapshot generated under different
	// rules or policy than the engine was configured with.
	ErrRulesetMismatch = errors.New("snapshot ruleset mismatch")

	// ErrInvalidConfig indicates an unusable engine configuration.
	ErrInvalidConfig = errors.New("invalid engine config")
)

// maxUniverse keeps three full-width rosters plus a flag inside the
// 64-bit fingerprint accumulator.
const maxUniverse = 21

// Config configures an Engine.
type Config struct {
	// Rules is the mission scenario to enumerate. Required.
	Rules ruleset.Rules

	// Path is the snapshot file. Required.
	Path string

	// Logger receives progress and lifecycle logs. Defaults to
	// slog.Default.
	Logger *slog.Logger

	// SaveInterval is the periodic snapshot cadence. Zero disables
	// periodic saves; a final save still happens when Generate returns.
	SaveInterval time.Duration

	// Control carries pause and save requests. Defaults to a fresh
	// controller.
	Control *Controller
}

// Stats is a point-in-time view of generation counters.
type Stats struct {
	Traversals uint64
	Outcomes   uint64
}

// scratch holds per-traversal squad selections that belong in encoded
// traversals but not in checkpoint frames. One slot per deflectable
// decision; a nil slice means the decision is not on the current path.
type scratch struct {
	upgradePicks [][]ruleset.Roster
	walkUnpicks  []ruleset.Roster
}

// Engine generates outcomes for one ruleset into one snapshot file.
//
// Thread Safety:
//
//	Generate runs on a single goroutine. Other goroutines may only use
//	Control and Stats while it runs.
type Engine struct {
	rules        ruleset.Rules
	layout       codec.Layout
	upgrades     []ruleset.UpgradeRule
	path         string
	log          *slog.Logger
	ctl          *Controller
	saveInterval time.Duration

	frames   *frameStack
	table    outcome.Table
	scratch  scratch
	complete bool

	traversals   atomic.Uint64
	outcomeCount atomic.Uint64
}

// New validates the configuration and returns an engine with empty
// state. Call Load before Generate to pick up an existing snapshot.
func New(cfg Config) (*Engine, error) {
	if cfg.Rules == nil {
		return nil, fmt.Errorf("%w: rules must not be nil", ErrInvalidConfig)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: path must not be empty", ErrInvalidConfig)
	}
	size := cfg.Rules.UniverseSize()
	if size < 1 || size > maxUniverse {
		return nil, fmt.Errorf("%w: universe size %d outside [1, %d]", ErrInvalidConfig, size, maxUniverse)
	}
	if cfg.Rules.MinRecruits() > cfg.Rules.Recruitable().Count() {
		return nil, fmt.Errorf("%w: minimum recruits exceeds recruitable candidates", ErrInvalidConfig)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctl := cfg.Control
	if ctl == nil {
		ctl = NewController()
	}
	return &Engine{
		rules:        cfg.Rules,
		layout:       codec.NewLayout(size),
		upgrades:     cfg.Rules.Upgrades(),
		path:         cfg.Path,
		log:          logger.With(slog.String("ruleset", cfg.Rules.Name())),
		ctl:          ctl,
		saveInterval: cfg.SaveInterval,
		frames:       newFrameStack(nil),
		table:        make(outcome.Table),
		scratch: scratch{
			upgradePicks: make([][]ruleset.Roster, len(cfg.Rules.Upgrades())),
		},
	}, nil
}

// Control returns the engine's controller.
func (e *Engine) Control() *Controller { return e.ctl }

// Table returns the live outcome table. Callers must not read it while
// Generate runs.
func (e *Engine) Table() outcome.Table { return e.table }

// Layout returns the codec layout for the engine's universe.
func (e *Engine) Layout() codec.Layout { return e.layout }

// IsComplete reports whether every traversal has been recorded.
func (e *Engine) IsComplete() bool { return e.complete }

// Stats returns current counters. Safe while Generate runs.
func (e *Engine) Stats() Stats {
	return Stats{
		Traversals: e.traversals.Load(),
		Outcomes:   e.outcomeCount.Load(),
	}
}

// SnapshotComplete reports whether a snapshot holds a fully generated
// table: the root decision frame left at its zero sentinel.
func SnapshotComplete(snap *storage.Snapshot) bool {
	return len(snap.Frames) > 0 &&
		snap.Frames[0].Key == KeyRecruitCount &&
		snap.Frames[0].Value == 0
}

// Load reads the snapshot file into the engine.
//
// Description:
//
//	A missing file starts a fresh run, which is expected the first time.
//	A snapshot generated under a different ruleset name is refused: its
//	frames would replay meaningless branches.
//
// Inputs:
//
//	ctx - Context for tracing.
//
// Outputs:
//
//	error - Non-nil on read failure, corruption, or ruleset mismatch.
func (e *Engine) Load(ctx context.Context) error {
	snap, err := storage.Load(ctx, e.path)
	if errors.Is(err, storage.ErrNotFound) {
		e.log.Warn("snapshot file not found, starting fresh (expected on the first run)",
			slog.String("path", e.path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap.Ruleset != e.rules.Name() {
		return fmt.Errorf("%w: snapshot %q, engine %q", ErrRulesetMismatch, snap.Ruleset, e.rules.Name())
	}

	e.frames = newFrameStack(snap.Frames)
	e.table = snap.Outcomes
	e.complete = SnapshotComplete(snap)
	e.traversals.Store(e.table.Traversals())
	e.outcomeCount.Store(uint64(len(e.table)))

	e.log.Info("snapshot loaded",
		slog.Int("frames", len(snap.Frames)),
		slog.Uint64("traversals", e.traversals.Load()),
		slog.Int("outcomes", len(e.table)),
		slog.Bool("complete", e.complete),
	)
	return nil
}

// save persists the engine state.
func (e *Engine) save(ctx context.Context) error {
	snap := &storage.Snapshot{
		Ruleset:  e.rules.Name(),
		Frames:   e.frames.Snapshot(),
		Outcomes: e.table,
	}
	if err := storage.Save(ctx, e.path, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	savesTotal.WithLabelValues(e.rules.Name()).Inc()
	e.log.Debug("snapshot saved",
		slog.Int("frames", len(snap.Frames)),
		slog.Uint64("traversals", e.traversals.Load()),
	)
	return nil
}

// Generate runs the enumeration until it completes or pauses.
//
// Description:
//
//	Walks every decision traversal not yet recorded, accumulating the
//	outcome table. The snapshot is saved on the configured interval and
//	once more before returning, whatever the cause. Canceling ctx
//	requests a graceful pause.
//
// Outputs:
//
//	error - nil when the enumeration completed; ErrPaused when a pause
//	request stopped it; otherwise the first rules or persistence
//	failure.
func (e *Engine) Generate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "engine.generate",
		trace.WithAttributes(
			attribute.String("engine.ruleset", e.rules.Name()),
			attribute.String("engine.path", e.path),
		),
	)
	defer span.End()

	if e.complete {
		e.log.Info("outcome table already complete")
		return nil
	}

	// The watcher turns context cancellation into a pause request and
	// drives the periodic save timer.
	done := make(chan struct{})
	defer close(done)
	go e.watch(ctx, done)

	start := time.Now()
	genErr := e.chooseRecruitment(ctx)
	saveErr := e.save(ctx)

	switch {
	case genErr == nil && saveErr == nil:
		e.log.Info("generation complete",
			slog.Duration("elapsed", time.Since(start)),
			slog.Uint64("traversals", e.traversals.Load()),
			slog.Int("outcomes", len(e.table)),
		)
		return nil
	case errors.Is(genErr, ErrPaused):
		pausesTotal.WithLabelValues(e.rules.Name()).Inc()
		e.log.Info("generation paused",
			slog.Duration("elapsed", time.Since(start)),
			slog.Uint64("traversals", e.traversals.Load()),
		)
		if saveErr != nil {
			return errors.Join(genErr, saveErr)
		}
		return genErr
	case genErr != nil:
		span.SetStatus(codes.Error, genErr.Error())
		return errors.Join(genErr, saveErr)
	default:
		span.SetStatus(codes.Error, saveErr.Error())
		return saveErr
	}
}

// watch converts context cancellation into a pause request and fires
// the periodic save flag.
func (e *Engine) watch(ctx context.Context, done <-chan struct{}) {
	var tick <-chan time.Time
	if e.saveInterval > 0 {
		ticker := time.NewTicker(e.saveInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			e.ctl.RequestPause()
			return
		case <-tick:
			e.ctl.RequestSave()
		}
	}
}

// mark writes a checkpoint frame and honors pending save and pause
// requests. Every decision branch passes through here before its
// subtree is explored, so the persisted path always points at work not
// yet done.
func (e *Engine) mark(ctx context.Context, key string, value uint64) error {
	e.frames.Set(key, value)
	if e.ctl.consumeSave() {
		if err := e.save(ctx); err != nil {
			return err
		}
	}
	if e.ctl.PauseRequested() {
		return ErrPaused
	}
	return nil
}

// =============================================================================
// Decision sequence
// =============================================================================

// chooseRecruitment iterates recruitment sizes in ascending order. The
// zero sentinel written at the end marks the table complete.
func (e *Engine) chooseRecruitment(ctx context.Context) error {
	start := e.frames.Read(KeyRecruitCount, uint64(e.rules.MinRecruits()))
	if start == 0 {
		e.complete = true
		return nil
	}
	max := e.rules.Recruitable().Count()
	for n := int(start); n <= max; n++ {
		if err := e.mark(ctx, KeyRecruitCount, uint64(n)); err != nil {
			return err
		}
		if err := e.chooseRecruits(ctx, n); err != nil {
			return err
		}
	}
	err := e.mark(ctx, KeyRecruitCount, 0)
	e.complete = true
	return err
}

// chooseRecruits iterates size-n recruit combinations. On resume, bits
// below the stored combination's lowest member are excluded and earlier
// combinations of the rest are skipped until the stored one is reached.
func (e *Engine) chooseRecruits(ctx context.Context, n int) error {
	stored := ruleset.Roster(e.frames.Read(KeyRecruits, 0))
	pool := e.rules.Recruitable() &^ stored.Below()
	err := bits.Combos(uint64(pool), n, func(combo uint64) error {
		recruits := ruleset.Roster(combo)
		if stored != ruleset.Nobody && recruits != stored {
			return nil
		}
		stored = ruleset.Nobody
		if err := e.mark(ctx, KeyRecruits, uint64(recruits)); err != nil {
			return err
		}
		team := e.rules.Recruit(ruleset.Team{Active: e.rules.Required()}, recruits)
		return e.chooseLoyalty(ctx, team)
	})
	if err != nil {
		return err
	}
	e.frames.Clear(KeyRecruits)
	return nil
}

// chooseLoyalty counts through loyalty assignments. Assignments marking
// an unrecruited candidate loyal cannot change any outcome; the counter
// jumps over the whole block sharing that bit by adding its lowest set
// bit.
func (e *Engine) chooseLoyalty(ctx context.Context, t ruleset.Team) error {
	counter := e.frames.Read(KeyLoyalty, uint64(e.rules.AlwaysLoyal()))
	limit := bits.Mask(e.rules.UniverseSize())
	eligible := e.rules.LoyaltyEligible()
	for counter <= limit {
		loyal := ruleset.Roster(counter)
		if loyal&eligible&^t.Active != 0 {
			counter += bits.FSB(counter)
			continue
		}
		if err := e.mark(ctx, KeyLoyalty, counter); err != nil {
			return err
		}
		if err := e.chooseSubstitution(ctx, t, loyal); err != nil {
			return err
		}
		counter++
	}
	e.frames.Clear(KeyLoyalty)
	return nil
}

// chooseSubstitution explores the base team, then the ruleset's
// substitute team as an extra sibling branch when it applies.
func (e *Engine) chooseSubstitution(ctx context.Context, t ruleset.Team, loyal ruleset.Roster) error {
	if e.frames.Read(KeySubstitute, 0) == 0 {
		if err := e.chooseUpgrade(ctx, 0, t, loyal); err != nil {
			return err
		}
	}
	if sub, ok := e.rules.Substitute(t, loyal); ok {
		if err := e.mark(ctx, KeySubstitute, 1); err != nil {
			return err
		}
		if err := e.chooseUpgrade(ctx, 0, sub, loyal); err != nil {
			return err
		}
	}
	e.frames.Clear(KeySubstitute)
	return nil
}

// chooseUpgrade explores one binary upgrade decision: purchased first,
// then declined with its victim. Past the last stage the specialist
// decisions begin.
func (e *Engine) chooseUpgrade(ctx context.Context, stage int, t ruleset.Team, loyal ruleset.Roster) error {
	if stage == len(e.upgrades) {
		return e.chooseTech(ctx, t, loyal)
	}
	u := e.upgrades[stage]
	if e.frames.Read(u.Name, 1) == 1 {
		if err := e.chooseUpgrade(ctx, stage+1, t, loyal); err != nil {
			return err
		}
	}
	if err := e.mark(ctx, u.Name, 0); err != nil {
		return err
	}
	if u.SquadChoice {
		if err := e.chooseDeflection(ctx, stage, t, loyal); err != nil {
			return err
		}
	} else {
		victim, err := ruleset.Victim(t.Active, u.Priority)
		if err != nil {
			return fmt.Errorf("%s victim: %w", u.Name, err)
		}
		if err := e.chooseUpgrade(ctx, stage+1, t.Kill(victim), loyal); err != nil {
			return err
		}
	}
	e.frames.Clear(u.Name)
	return nil
}

// chooseDeflection enumerates the squad picks that deflect a declined
// upgrade's death down its priority list. Not picking the top victim
// kills them; picking them moves the death to the next entry. Only the
// first three entries can die, so three picks cover every outcome.
func (e *Engine) chooseDeflection(ctx context.Context, stage int, t ruleset.Team, loyal ruleset.Roster) error {
	u := e.upgrades[stage]
	pickKey := u.Name + pickSuffix
	memoPick := e.frames.Read(pickKey, 0)
	pool := t.Active
	picks := make([]ruleset.Roster, 0, 3)
	for pick := uint64(0); pick < 3; pick++ {
		victim, err := ruleset.Victim(pool, u.Priority)
		if err != nil {
			return fmt.Errorf("%s victim: %w", u.Name, err)
		}
		picks = append(picks, victim)
		if pick >= memoPick {
			if err := e.mark(ctx, pickKey, pick); err != nil {
				return err
			}
			e.scratch.upgradePicks[stage] = picks
			if err := e.chooseUpgrade(ctx, stage+1, t.Kill(victim), loyal); err != nil {
				return err
			}
		}
		pool &^= victim
	}
	e.scratch.upgradePicks[stage] = nil
	e.frames.Clear(pickKey)
	return nil
}

// chooseTech iterates tech specialist selections. A savable tech opens
// the first-leader decision; any other tech dies.
func (e *Engine) chooseTech(ctx context.Context, t ruleset.Team, loyal ruleset.Roster) error {
	cur := ruleset.Roster(e.frames.Read(KeyTech, 0))
	for _, tech := range (t.Active &^ cur.Below()).Split() {
		if err := e.mark(ctx, KeyTech, uint64(tech)); err != nil {
			return err
		}
		if e.rules.TechSavable(tech, loyal) {
			if err := e.chooseFirstLeader(ctx, t, loyal, tech); err != nil {
				return err
			}
		} else {
			if err := e.chooseBiotic(ctx, t.Kill(tech), loyal); err != nil {
				return err
			}
		}
	}
	e.frames.Clear(KeyTech)
	return nil
}

// chooseFirstLeader explores the first-leader decision for a savable
// tech. An ideal branch exists only when a loyal ideal leader is
// available; the non-ideal branch always exists and kills the tech.
func (e *Engine) chooseFirstLeader(ctx context.Context, t ruleset.Team, loyal, tech ruleset.Roster) error {
	ideal := t.Active &^ tech & loyal & e.rules.IdealLeaders()
	def := uint64(0)
	if ideal != ruleset.Nobody {
		def = 1
	}
	if e.frames.Read(KeyFirstLeader, def) == 1 {
		if err := e.mark(ctx, KeyFirstLeader, 1); err != nil {
			return err
		}
		if err := e.chooseBiotic(ctx, t, loyal); err != nil {
			return err
		}
	}
	if err := e.mark(ctx, KeyFirstLeader, 0); err != nil {
		return err
	}
	if err := e.chooseBiotic(ctx, t.Kill(tech), loyal); err != nil {
		return err
	}
	e.frames.Clear(KeyFirstLeader)
	return nil
}

// chooseBiotic iterates biotic specialist selections.
func (e *Engine) chooseBiotic(ctx context.Context, t ruleset.Team, loyal ruleset.Roster) error {
	cur := ruleset.Roster(e.frames.Read(KeyBiotic, 0))
	for _, biotic := range (t.Active & e.rules.Biotics() &^ cur.Below()).Split() {
		if err := e.mark(ctx, KeyBiotic, uint64(biotic)); err != nil {
			return err
		}
		if err := e.chooseSecondLeader(ctx, t, loyal, biotic); err != nil {
			return err
		}
	}
	e.frames.Clear(KeyBiotic)
	return nil
}

// chooseSecondLeader iterates second fireteam leader selections.
func (e *Engine) chooseSecondLeader(ctx context.Context, t ruleset.Team, loyal, biotic ruleset.Roster) error {
	cur := ruleset.Roster(e.frames.Read(KeySecondLeader, 0))
	for _, leader := range (t.Active &^ (biotic | cur.Below())).Split() {
		if err := e.mark(ctx, KeySecondLeader, uint64(leader)); err != nil {
			return err
		}
		if err := e.chooseCrew(ctx, t, loyal, biotic, leader); err != nil {
			return err
		}
	}
	e.frames.Clear(KeySecondLeader)
	return nil
}

// chooseCrew explores not sending an escort, then sending one when the
// ruleset's policy allows it at the current team size.
func (e *Engine) chooseCrew(ctx context.Context, t ruleset.Team, loyal, biotic, leader ruleset.Roster) error {
	if e.frames.Read(KeyCrew, 0) == 0 {
		if err := e.chooseWalk(ctx, t, loyal, biotic, leader); err != nil {
			return err
		}
	}
	if e.rules.EscortAvailable(t.Active.Count()) {
		if err := e.mark(ctx, KeyCrew, 1); err != nil {
			return err
		}
		if err := e.chooseEscort(ctx, t, loyal, biotic, leader); err != nil {
			return err
		}
	}
	e.frames.Clear(KeyCrew)
	return nil
}

// chooseEscort iterates escort selections. A loyal escort survives the
// trip; a disloyal one dies making it.
func (e *Engine) chooseEscort(ctx context.Context, t ruleset.Team, loyal, biotic, leader ruleset.Roster) error {
	cur := ruleset.Roster(e.frames.Read(KeyEscort, 0))
	pool := t.Active & e.rules.Escorts() &^ (biotic | leader | cur.Below())
	for _, escort := range pool.Split() {
		if err := e.mark(ctx, KeyEscort, uint64(escort)); err != nil {
			return err
		}
		next := t.Kill(escort)
		if escort&loyal != ruleset.Nobody {
			next = t.Spare(escort)
		}
		if err := e.chooseWalk(ctx, next, loyal, biotic, leader); err != nil {
			return err
		}
	}
	e.frames.Clear(KeyEscort)
	return nil
}

// chooseWalk resolves the long-walk death. A saving biotic skips it; a
// pool too small for a meaningful squad kills the priority victim
// outright; otherwise each unpick moves the death down the priority
// list.
func (e *Engine) chooseWalk(ctx context.Context, t ruleset.Team, loyal, biotic, leader ruleset.Roster) error {
	if e.rules.BioticSaves(biotic, loyal) {
		return e.chooseFinalSquad(ctx, t, loyal, leader)
	}
	pool := t.Active &^ (biotic | leader)
	if pool.Count() < 3 {
		victim, err := ruleset.Victim(pool, e.rules.WalkPriority())
		if err != nil {
			return fmt.Errorf("walk victim: %w", err)
		}
		return e.chooseFinalSquad(ctx, t.Kill(victim), loyal, leader)
	}
	memoUnpick := e.frames.Read(KeyWalkUnpick, 0)
	bound := uint64(pool.Count() - 1)
	if bound > 3 {
		bound = 3
	}
	unpicks := make([]ruleset.Roster, 0, 3)
	for unpick := uint64(0); unpick < bound; unpick++ {
		victim, err := ruleset.Victim(pool, e.rules.WalkPriority())
		if err != nil {
			return fmt.Errorf("walk victim: %w", err)
		}
		unpicks = append(unpicks, victim)
		if unpick >= memoUnpick {
			if err := e.mark(ctx, KeyWalkUnpick, unpick); err != nil {
				return err
			}
			e.scratch.walkUnpicks = unpicks
			if err := e.chooseFinalSquad(ctx, t.Kill(victim), loyal, leader); err != nil {
				return err
			}
		}
		pool &^= victim
	}
	e.scratch.walkUnpicks = nil
	e.frames.Clear(KeyWalkUnpick)
	return nil
}

// chooseFinalSquad iterates final squads, applies the defense toll to
// the candidates holding the line, and records the terminal outcomes.
func (e *Engine) chooseFinalSquad(ctx context.Context, t ruleset.Team, loyal, leader ruleset.Roster) error {
	if !e.rules.LeaderSurvives(leader, loyal, t.Active.Count()) {
		t = t.Kill(leader)
	}
	stored := ruleset.Roster(e.frames.Read(KeyFinalSquad, 0))
	pool := t.Active &^ stored.Below()
	err := bits.Combos(uint64(pool), 2, func(combo uint64) error {
		squad := ruleset.Roster(combo)
		if stored != ruleset.Nobody && squad != stored {
			return nil
		}
		stored = ruleset.Nobody
		if err := e.mark(ctx, KeyFinalSquad, uint64(squad)); err != nil {
			return err
		}
		// Permissive escort policies can drain the team down to the squad
		// itself, leaving nobody behind to hold the line.
		var victims ruleset.Roster
		if defense := t.Active &^ squad; defense != ruleset.Nobody {
			var err error
			victims, err = e.rules.DefenseVictims(defense, loyal)
			if err != nil {
				return fmt.Errorf("defense victims: %w", err)
			}
		}
		victims |= e.rules.SquadVictims(squad, loyal)
		return e.record(t.KillAndSpareActive(victims), loyal)
	})
	if err != nil {
		return err
	}
	e.frames.Clear(KeyFinalSquad)
	return nil
}

// record encodes the terminal team state and the decision path that
// produced it, then folds both into the outcome table.
func (e *Engine) record(t ruleset.Team, loyal ruleset.Roster) error {
	eligible := e.rules.LoyaltyEligible()
	crewVal, _ := e.frames.Get(KeyCrew)

	fingerprint := codec.EncodeOutcome(e.layout, codec.Outcome{
		Spared:  t.Spared,
		Dead:    t.Dead,
		Loyalty: t.Spared & loyal & eligible,
		Crew:    crewVal == 1,
	})

	enc := codec.NewEncoder(e.layout)
	enc.PutRoster(loyal & (t.Spared | t.Dead) & eligible)
	for i, u := range e.upgrades {
		val, ok := e.frames.Get(u.Name)
		purchased := !ok || val == 1
		enc.PutBool(purchased)
		if !purchased && u.SquadChoice {
			enc.PutChoices(e.scratch.upgradePicks[i])
		}
	}
	tech, _ := e.frames.Get(KeyTech)
	enc.PutIndex(ruleset.Roster(tech))
	if val, ok := e.frames.Get(KeyFirstLeader); ok {
		enc.PutBool(val == 1)
	}
	biotic, _ := e.frames.Get(KeyBiotic)
	enc.PutIndex(ruleset.Roster(biotic))
	leader, _ := e.frames.Get(KeySecondLeader)
	enc.PutIndex(ruleset.Roster(leader))
	escort, _ := e.frames.Get(KeyEscort)
	enc.PutIndex(ruleset.Roster(escort))
	_, walked := e.frames.Get(KeyWalkUnpick)
	enc.PutBool(walked)
	if walked {
		enc.PutChoices(e.scratch.walkUnpicks)
	}
	squad, _ := e.frames.Get(KeyFinalSquad)
	if err := enc.PutSquad(ruleset.Roster(squad)); err != nil {
		return fmt.Errorf("encode final squad: %w", err)
	}
	traversal, err := enc.Result()
	if err != nil {
		return fmt.Errorf("encode traversal: %w", err)
	}

	e.table.Add(fingerprint, traversal)
	e.traversals.Add(1)
	e.outcomeCount.Store(uint64(len(e.table)))
	traversalsTotal.WithLabelValues(e.rules.Name()).Inc()
	outcomesCurrent.WithLabelValues(e.rules.Name()).Set(float64(len(e.table)))
	return nil
}
