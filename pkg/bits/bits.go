// Copyright (C) 2025 N7 Tools (n7tools@proton.me)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package bits provides small-word bitset helpers.
//
// The helpers operate on uint64 values interpreted as sets, with bit 0 as
// the first member. They back the roster arithmetic and the checkpointed
// combination iteration in the mission engine.
package bits

import stdbits "math/bits"

// FFS returns the zero-based position of the lowest set bit in x, or -1
// if no bits are set.
func FFS(x uint64) int {
	if x == 0 {
		return -1
	}
	return stdbits.TrailingZeros64(x)
}

// FSB returns the value of the lowest set bit in x, or 0 if no bits are
// set.
func FSB(x uint64) uint64 {
	return x & -x
}

// Mask returns a value with the n lowest bits set.
func Mask(n int) uint64 {
	if n <= 0 {
		return 0
	}
	if n >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << n) - 1
}

// MTZ returns a mask of the trailing zero bits in x: every bit strictly
// below the lowest set bit. MTZ(0) is 0.
func MTZ(x uint64) uint64 {
	if x == 0 {
		return 0
	}
	return FSB(x) - 1
}

// Count returns the number of set bits in x.
func Count(x uint64) int {
	return stdbits.OnesCount64(x)
}

// Split returns each set bit of x as its own value, in ascending order.
func Split(x uint64) []uint64 {
	out := make([]uint64, 0, Count(x))
	for x != 0 {
		b := FSB(x)
		out = append(out, b)
		x &^= b
	}
	return out
}

// Indices returns the position of each set bit in x, in ascending order,
// where the position of bit 0 is start.
func Indices(x uint64, start int) []int {
	out := make([]int, 0, Count(x))
	for x != 0 {
		b := FSB(x)
		out = append(out, stdbits.TrailingZeros64(b)+start)
		x &^= b
	}
	return out
}

// Combos calls fn once for each k-member subset of set, as a bitmask.
// Subsets are visited in lexicographic order of their ascending member
// positions, matching the order a nested ascending loop would produce.
// Iteration stops at the first non-nil error from fn, which is returned.
func Combos(set uint64, k int, fn func(combo uint64) error) error {
	members := Split(set)
	n := len(members)
	if k <= 0 || k > n {
		return nil
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		var combo uint64
		for _, i := range idx {
			combo |= members[i]
		}
		if err := fn(combo); err != nil {
			return err
		}
		// Advance to the next index tuple.
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return nil
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// Rank returns the lexicographic rank of combo among the subsets of set
// with Count(combo) members, matching the visit order of Combos. combo
// must be a subset of set.
func Rank(set, combo uint64) uint64 {
	members := Split(set)
	n := len(members)
	k := Count(combo)
	var rank uint64
	j := 0
	prev := -1
	for idx, m := range members {
		if combo&m == 0 {
			continue
		}
		for v := prev + 1; v < idx; v++ {
			rank += Binomial(n-1-v, k-1-j)
		}
		prev = idx
		j++
	}
	return rank
}

// Binomial returns n choose k, saturating at the maximum uint64 on
// overflow. It sizes progress denominators for combination levels.
func Binomial(n, k int) uint64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	var result uint64 = 1
	for i := 1; i <= k; i++ {
		hi, lo := stdbits.Mul64(result, uint64(n-k+i))
		if hi != 0 {
			return ^uint64(0)
		}
		result = lo / uint64(i)
	}
	return result
}
