// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package codec bit-packs traversal and outcome data.
//
// Encoders append fields least-significant-bit first into a single
// integer. Field widths are derived from the ruleset's universe size, so
// an encoded value can only be decoded against the same universe and
// field sequence. The outcome tables hold millions of encoded values, so
// compactness wins over self-description.
package codec

import (
	"errors"
	"fmt"
	stdbits "math/bits"

	"github.com/n7tools/finalmission/pkg/bits"
	"github.com/n7tools/finalmission/services/mission/ruleset"
)

var (
	// ErrNotASquad indicates a squad encoding with other than exactly two
	// members.
	ErrNotASquad = errors.New("squad must have exactly two members")

	// ErrOverflow indicates an encoding exceeded the 64-bit accumulator.
	ErrOverflow = errors.New("encoding exceeds 64 bits")
)

// Layout derives field widths from a universe size.
type Layout struct {
	universe   int
	indexWidth int
}

// NewLayout returns the field layout for a universe of the given size.
// Universe sizes outside [1, 32] are rejected at ruleset construction,
// not here.
func NewLayout(universeSize int) Layout {
	return Layout{
		universe:   universeSize,
		indexWidth: stdbits.Len(uint(universeSize)),
	}
}

// UniverseSize returns the layout's universe size in bits.
func (l Layout) UniverseSize() int { return l.universe }

// =============================================================================
// Encoder
// =============================================================================

// Encoder accumulates bit-packed fields. Errors stick: once a Put fails,
// Result reports the first failure.
type Encoder struct {
	layout Layout
	value  uint64
	length int
	err    error
}

// NewEncoder returns an empty encoder for the given layout.
func NewEncoder(layout Layout) *Encoder {
	return &Encoder{layout: layout}
}

// append places the low width bits of v at the most significant end of
// the accumulated encoding.
func (e *Encoder) append(v uint64, width int) {
	if e.err != nil {
		return
	}
	if e.length+width > 64 {
		e.err = fmt.Errorf("%w: %d bits", ErrOverflow, e.length+width)
		return
	}
	e.value |= (v & bits.Mask(width)) << e.length
	e.length += width
}

// PutBool appends a single bit.
func (e *Encoder) PutBool(v bool) {
	var b uint64
	if v {
		b = 1
	}
	e.append(b, 1)
}

// PutRoster appends a full-width roster.
func (e *Encoder) PutRoster(r ruleset.Roster) {
	e.append(uint64(r), e.layout.universe)
}

// PutIndex appends the 1-based position of the roster's lowest member,
// or zero for the empty roster.
func (e *Encoder) PutIndex(r ruleset.Roster) {
	e.append(uint64(bits.FFS(uint64(r))+1), e.layout.indexWidth)
}

// PutSquad appends two candidate indices. The squad must have exactly
// two members.
func (e *Encoder) PutSquad(squad ruleset.Roster) error {
	if squad.Count() != 2 {
		err := fmt.Errorf("%w: %#x", ErrNotASquad, uint64(squad))
		if e.err == nil {
			e.err = err
		}
		return err
	}
	for _, member := range squad.Split() {
		e.PutIndex(member)
	}
	return nil
}

// PutChoices appends up to two candidate indices from picks, preceded by
// a bit set when picks holds fewer than three entries. When the bit is
// set, the last encoded pick reads as the opposite choice; what
// "opposite" means depends on the decision that recorded the picks.
func (e *Encoder) PutChoices(picks []ruleset.Roster) {
	var first, second ruleset.Roster
	if len(picks) > 0 {
		first = picks[0]
	}
	if first != ruleset.Nobody && len(picks) > 1 {
		second = picks[1]
	}
	e.PutBool(len(picks) < 3)
	e.PutIndex(first)
	e.PutIndex(second)
}

// Result returns the accumulated encoding, or the first Put failure.
func (e *Encoder) Result() (uint64, error) {
	if e.err != nil {
		return 0, e.err
	}
	return e.value, nil
}

// Len returns the number of bits appended so far.
func (e *Encoder) Len() int { return e.length }

// =============================================================================
// Decoder
// =============================================================================

// Decoder extracts bit-packed fields in the order they were appended.
type Decoder struct {
	layout Layout
	value  uint64
}

// NewDecoder returns a decoder over an encoded value.
func NewDecoder(layout Layout, encoded uint64) *Decoder {
	return &Decoder{layout: layout, value: encoded}
}

// shift returns the low width bits and shifts them out.
func (d *Decoder) shift(width int) uint64 {
	v := d.value & bits.Mask(width)
	d.value >>= width
	return v
}

// Bool decodes a single bit.
func (d *Decoder) Bool() bool {
	return d.shift(1) != 0
}

// Roster decodes a full-width roster.
func (d *Decoder) Roster() ruleset.Roster {
	return ruleset.Roster(d.shift(d.layout.universe))
}

// Index decodes a 1-based candidate index as a single-member roster, or
// the empty roster for index zero.
func (d *Decoder) Index() ruleset.Roster {
	index := d.shift(d.layout.indexWidth)
	if index == 0 {
		return ruleset.Nobody
	}
	return ruleset.Roster(1) << (index - 1)
}

// Squad decodes two candidate indices as one roster.
func (d *Decoder) Squad() ruleset.Roster {
	return d.Index() | d.Index()
}

// Choices decodes the invert bit and up to two candidate picks.
func (d *Decoder) Choices() (invertLast bool, picks []ruleset.Roster) {
	invertLast = d.Bool()
	for i := 0; i < 2; i++ {
		if pick := d.Index(); pick != ruleset.Nobody {
			picks = append(picks, pick)
		}
	}
	return invertLast, picks
}

// =============================================================================
// Outcome fingerprint
// =============================================================================

// Outcome is a decoded outcome fingerprint.
type Outcome struct {
	Spared  ruleset.Roster
	Dead    ruleset.Roster
	Loyalty ruleset.Roster
	Crew    bool
}

// EncodeOutcome packs an outcome fingerprint: spared roster, dead
// roster, loyalty of spared eligible candidates, and the crew-rescue
// flag. The loyalty of dead candidates is omitted; traversals that
// differ only there collapse into one fingerprint.
func EncodeOutcome(layout Layout, o Outcome) uint64 {
	e := NewEncoder(layout)
	e.PutRoster(o.Spared)
	e.PutRoster(o.Dead)
	e.PutRoster(o.Loyalty)
	e.PutBool(o.Crew)
	// Three rosters and a bool always fit: the universe is at most 21
	// bits wide before Result could fail.
	v, _ := e.Result()
	return v
}

// DecodeOutcome unpacks an outcome fingerprint.
func DecodeOutcome(layout Layout, encoded uint64) Outcome {
	d := NewDecoder(layout, encoded)
	return Outcome{
		Spared:  d.Roster(),
		Dead:    d.Roster(),
		Loyalty: d.Roster(),
		Crew:    d.Bool(),
	}
}
