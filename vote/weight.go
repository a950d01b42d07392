// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vote holds the per-block vote accounting a voting round
// needs to answer "does this block have a GHOST-prevote / a
// supermajority precommit": a weight tracked separately for prevotes
// and precommits (Weight), and a per-voter slot machine that turns
// duplicate votes into equivocation evidence (Tracker).
package vote

import "github.com/luxfi/grandpa/utils/set"

// Weight is the cumulative voter-index bitset and weight sum attached
// to one block in the vote graph, tracked separately for prevotes and
// precommits. It is OR-monotone: once a voter index is set it is never
// cleared, so Weight only ever grows as votes accumulate along a
// chain of ancestors.
type Weight struct {
	prevote    set.Set[int]
	precommit  set.Set[int]
	prevoteW   uint64
	precommitW uint64
}

// NewWeight returns an empty Weight.
func NewWeight() Weight {
	return Weight{
		prevote:   set.NewSet[int](0),
		precommit: set.NewSet[int](0),
	}
}

// SetPrevote records that voterIndex (carrying weight w) prevoted for
// the block this Weight is attached to. Idempotent: setting the same
// index twice does not double count.
func (w *Weight) SetPrevote(voterIndex int, weight uint64) {
	if w.prevote.Contains(voterIndex) {
		return
	}
	w.prevote.Add(voterIndex)
	w.prevoteW += weight
}

// SetPrecommit records that voterIndex (carrying weight w) precommitted
// for the block this Weight is attached to.
func (w *Weight) SetPrecommit(voterIndex int, weight uint64) {
	if w.precommit.Contains(voterIndex) {
		return
	}
	w.precommit.Add(voterIndex)
	w.precommitW += weight
}

// Prevote returns the cumulative prevote weight.
func (w *Weight) Prevote() uint64 { return w.prevoteW }

// Precommit returns the cumulative precommit weight.
func (w *Weight) Precommit() uint64 { return w.precommitW }

// Merge folds other's bitsets into w via bitwise OR and recomputes the
// weight sums from the merged bitsets using the supplied weight
// lookup. This is how an ancestor's Weight picks up the votes of its
// vote-graph children without double-counting a voter who voted for
// both: merging is idempotent and commutative.
func (w *Weight) Merge(other Weight, weightOf func(voterIndex int) uint64) {
	for idx := range other.prevote {
		if !w.prevote.Contains(idx) {
			w.prevote.Add(idx)
			w.prevoteW += weightOf(idx)
		}
	}
	for idx := range other.precommit {
		if !w.precommit.Contains(idx) {
			w.precommit.Add(idx)
			w.precommitW += weightOf(idx)
		}
	}
}

// Clone returns an independent copy of w.
func (w Weight) Clone() Weight {
	out := NewWeight()
	for idx := range w.prevote {
		out.prevote.Add(idx)
	}
	for idx := range w.precommit {
		out.precommit.Add(idx)
	}
	out.prevoteW = w.prevoteW
	out.precommitW = w.precommitW
	return out
}
