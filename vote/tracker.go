// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vote

import (
	"iter"

	"github.com/luxfi/grandpa"
)

// Outcome classifies the result of pushing a signed message into a
// Tracker.
type Outcome int

const (
	// FirstSeen means this is the first message this voter has cast
	// for this vote type in the round.
	FirstSeen Outcome = iota
	// Duplicate means the voter already cast an identical message.
	Duplicate
	// Equivocation means the voter cast two distinct messages for the
	// same vote type and round: both are retained as proof.
	Equivocation
)

type slot struct {
	first  grandpa.SignedMessage
	second grandpa.SignedMessage
	state  Outcome
}

// Tracker holds, per voter index, the message(s) that voter has cast
// for one vote type in one round. It is the single place equivocation
// is detected: a second distinct message from an already-seen voter
// flips that voter's slot to Equivocation and both messages are kept
// as the EquivocationPair.
type Tracker struct {
	slots map[int]*slot
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{slots: make(map[int]*slot)}
}

// Push records a signed message from voterIndex. It returns the
// outcome of this push, and — only when the outcome is Equivocation —
// the EquivocationPair formed by the two conflicting messages.
func (t *Tracker) Push(voterIndex int, msg grandpa.SignedMessage) (Outcome, *grandpa.EquivocationPair) {
	s, ok := t.slots[voterIndex]
	if !ok {
		t.slots[voterIndex] = &slot{first: msg, state: FirstSeen}
		return FirstSeen, nil
	}

	switch s.state {
	case FirstSeen:
		if sameTarget(s.first, msg) {
			return Duplicate, nil
		}
		s.second = msg
		s.state = Equivocation
		pair := &grandpa.EquivocationPair{First: s.first, Second: s.second}
		return Equivocation, pair
	case Equivocation:
		// Already equivocated; further messages from this voter are
		// neither counted nor re-reported.
		return Duplicate, nil
	default:
		return Duplicate, nil
	}
}

func sameTarget(a, b grandpa.SignedMessage) bool {
	return a.Message.Target == b.Message.Target
}

// Equivocators returns the set of voter indices whose slot is in the
// Equivocation state. Their weight is still counted: TotalWeight and
// EquivocatorsWeight include them, and a round inserts both of their
// conflicting votes into its vote graph.
func (t *Tracker) Equivocators() []int {
	var out []int
	for idx, s := range t.slots {
		if s.state == Equivocation {
			out = append(out, idx)
		}
	}
	return out
}

// Messages iterates every non-equivocating voter's single retained
// message, in no particular order. Equivocators are excluded; their two
// conflicting messages are the EquivocationPair that Push returned.
func (t *Tracker) Messages() iter.Seq[grandpa.SignedMessage] {
	return func(yield func(grandpa.SignedMessage) bool) {
		for _, s := range t.slots {
			if s.state == Equivocation {
				continue
			}
			if !yield(s.first) {
				return
			}
		}
	}
}

// Count returns the number of distinct voters tracked (including
// equivocators).
func (t *Tracker) Count() int { return len(t.slots) }

// TotalWeight sums weightOf(idx) once per distinct tracked voter,
// equivocators included exactly once — the "prevote_weight" /
// "precommit_weight" term a VotingRound's estimate computation needs.
func (t *Tracker) TotalWeight(weightOf func(voterIndex int) uint64) uint64 {
	var total uint64
	for idx := range t.slots {
		total += weightOf(idx)
	}
	return total
}

// EquivocatorsWeight sums weightOf(idx) over every voter whose slot is
// in the Equivocation state.
func (t *Tracker) EquivocatorsWeight(weightOf func(voterIndex int) uint64) uint64 {
	var total uint64
	for idx, s := range t.slots {
		if s.state == Equivocation {
			total += weightOf(idx)
		}
	}
	return total
}
