// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package voter holds the fixed, immutable authority roster a single
// voting round runs against (spec §4.2's "VoterSet"). Unlike the
// subnet-staking validator manager this is adapted from, a VoterSet
// never mutates once built: authority-set changes produce a new
// VoterSet under a new SetID rather than updating one in place.
package voter

import (
	"errors"
	"fmt"

	"github.com/luxfi/grandpa"
)

var (
	// ErrDuplicateVoter is returned by New when two entries share an ID.
	ErrDuplicateVoter = errors.New("voter: duplicate voter id")
	// ErrEmptySet is returned by New when given no entries.
	ErrEmptySet = errors.New("voter: empty voter set")
	// ErrZeroWeight is returned by New when an entry carries zero weight.
	ErrZeroWeight = errors.New("voter: zero weight entry")
)

// Entry is one authority's identity and voting weight.
type Entry struct {
	ID     grandpa.VoterID
	Weight uint64
}

// Set is an immutable, indexed roster of authorities for one voter-set
// generation. The zero value is not valid; build one with New.
type Set struct {
	setID   uint64
	entries []Entry
	index   map[grandpa.VoterID]int
	total   uint64
}

// New builds a Set from entries, rejecting duplicate IDs and zero
// weights. The index assigned to each voter is its position in
// entries, stable for the lifetime of the Set.
func New(setID uint64, entries []Entry) (*Set, error) {
	if len(entries) == 0 {
		return nil, ErrEmptySet
	}

	index := make(map[grandpa.VoterID]int, len(entries))
	var total uint64
	out := make([]Entry, len(entries))
	for i, e := range entries {
		if e.Weight == 0 {
			return nil, fmt.Errorf("%w: voter %s", ErrZeroWeight, e.ID)
		}
		if _, dup := index[e.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateVoter, e.ID)
		}
		index[e.ID] = i
		total += e.Weight
		out[i] = e
	}

	return &Set{
		setID:   setID,
		entries: out,
		index:   index,
		total:   total,
	}, nil
}

// SetID returns the generation number of this authority set (spec §6's
// voter_set_id, bound into every signed payload).
func (s *Set) SetID() uint64 { return s.setID }

// Size returns the number of voters in the set.
func (s *Set) Size() int { return len(s.entries) }

// TotalWeight returns the sum of every voter's weight.
func (s *Set) TotalWeight() uint64 { return s.total }

// Threshold returns the minimum cumulative weight that constitutes a
// BFT supermajority: floor(2*total/3)+1. This is load-bearing and must
// never be approximated with floating point.
func (s *Set) Threshold() uint64 {
	return 2*s.total/3 + 1
}

// IndexOf returns the stable index of id within the set, or false if
// id is not a member.
func (s *Set) IndexOf(id grandpa.VoterID) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// WeightOf returns id's weight, or false if id is not a member.
func (s *Set) WeightOf(id grandpa.VoterID) (uint64, bool) {
	i, ok := s.index[id]
	if !ok {
		return 0, false
	}
	return s.entries[i].Weight, true
}

// IndexAndWeight is a convenience combining IndexOf and WeightOf in
// one lookup, as used on every incoming vote's hot path.
func (s *Set) IndexAndWeight(id grandpa.VoterID) (index int, weight uint64, ok bool) {
	i, ok := s.index[id]
	if !ok {
		return 0, 0, false
	}
	return i, s.entries[i].Weight, true
}

// Nth returns the entry at index i. Panics if i is out of range,
// mirroring slice indexing semantics since callers only ever reach
// here with indices previously obtained from IndexOf.
func (s *Set) Nth(i int) Entry { return s.entries[i] }

// Entries returns the voter set's entries in index order. The
// returned slice is owned by the caller; it is a fresh copy so the
// Set's internal state cannot be mutated through it.
func (s *Set) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
