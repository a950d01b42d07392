// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package session implements the rolling session window used to
// track how recently each voter has participated (spec §5): a fixed
// number of recency "ticks" are kept, the oldest tick is dropped once
// the window overflows, and a voter that has voted before but is
// absent from every tick in the window is reported as inactive.
package session

import "github.com/luxfi/grandpa/utils/linked"

// Window is a fixed-size rolling record of per-voter activity, keyed
// by voter index. Each call to Tick() advances the window by one
// recency slot; votes recorded since the last Tick are folded into
// the newest slot.
type Window struct {
	size int
	// ticks[0] is the oldest surviving tick, ticks[len-1] is current.
	ticks []map[int]struct{}
	order *linked.Hashmap[int, struct{}]
}

// New returns a Window retaining size ticks.
func New(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		size:  size,
		ticks: []map[int]struct{}{make(map[int]struct{})},
		order: linked.NewHashmap[int, struct{}](),
	}
}

// RecordVote marks voterIndex as active in the current tick.
func (w *Window) RecordVote(voterIndex int) {
	w.ticks[len(w.ticks)-1][voterIndex] = struct{}{}
	w.order.Put(voterIndex, struct{}{})
}

// Tick advances the window by one recency slot. Once the window holds
// more than size ticks, the oldest is dropped — a voter who only
// appears in that dropped tick and no other becomes inactive.
func (w *Window) Tick() {
	w.ticks = append(w.ticks, make(map[int]struct{}))
	if len(w.ticks) > w.size {
		w.ticks = w.ticks[1:]
	}
}

// Active reports whether voterIndex has voted in any tick still held
// by the window.
func (w *Window) Active(voterIndex int) bool {
	for _, tick := range w.ticks {
		if _, ok := tick[voterIndex]; ok {
			return true
		}
	}
	return false
}

// Inactive returns every voter index that RecordVote has ever been
// called for but that is not Active in the current window — the set a
// reputation system would consider for penalty.
func (w *Window) Inactive() []int {
	var out []int
	w.order.Iterate(func(id int, _ struct{}) bool {
		if !w.Active(id) {
			out = append(out, id)
		}
		return true
	})
	return out
}
