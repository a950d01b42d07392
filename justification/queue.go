// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package justification implements the VerifiedJustificationQueue of
// spec.md §4.7.4: commit justifications are applied strictly in order
// of (set_id, block_number); a gap in that order triggers a
// sync-by-hash request rather than blocking forever, and warp() lets
// an out-of-order justification at a far-future set_id become the new
// trust anchor, after which ordinary sequential application resumes.
package justification

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/luxfi/grandpa"
)

// Justification is one commit proof the queue orders and applies.
type Justification struct {
	SetID       uint64
	BlockNumber uint64
	Target      grandpa.BlockInfo
	Precommits  []grandpa.SignedMessage
}

func (j Justification) less(other Justification) bool {
	if j.SetID != other.SetID {
		return j.SetID < other.SetID
	}
	return j.BlockNumber < other.BlockNumber
}

func (j Justification) sameOrBefore(setID, blockNumber uint64) bool {
	if j.SetID != setID {
		return j.SetID < setID
	}
	return j.BlockNumber <= blockNumber
}

// Syncer is asked to backfill whatever is missing between the queue's
// last applied block and a justification it cannot yet apply in
// order.
type Syncer interface {
	SyncByHash(ctx context.Context, hash grandpa.BlockHash) error
}

// Applier actually finalizes a justification once the queue has
// decided it is next in order (or is a warp anchor).
type Applier func(ctx context.Context, j Justification) error

type justHeap []Justification

func (h justHeap) Len() int            { return len(h) }
func (h justHeap) Less(i, j int) bool  { return h[i].less(h[j]) }
func (h justHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *justHeap) Push(x interface{}) { *h = append(*h, x.(Justification)) }
func (h *justHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue orders pending justifications by (set_id, block_number) and
// applies them strictly in that order.
type Queue struct {
	items justHeap
	syncer Syncer

	setID       uint64
	blockNumber uint64
	warping     bool
}

// NewQueue returns a Queue that considers (startSetID, startBlockNumber)
// already applied — the next justification it will accept must be
// exactly one block past it, in the same set.
func NewQueue(startSetID, startBlockNumber uint64, syncer Syncer) *Queue {
	return &Queue{syncer: syncer, setID: startSetID, blockNumber: startBlockNumber}
}

// Push enqueues j and drains whatever is now applyable in order,
// calling apply for each. If j (or the current head of the queue) is
// ahead of what is expected next, a sync-by-hash request is issued for
// its target and Push returns without applying anything; a later Push
// (once the gap is filled and re-delivered) resumes draining.
func (q *Queue) Push(ctx context.Context, j Justification, apply Applier) error {
	if j.sameOrBefore(q.setID, q.blockNumber) {
		return nil // stale or duplicate, already applied or superseded
	}
	heap.Push(&q.items, j)
	return q.drain(ctx, apply)
}

func (q *Queue) drain(ctx context.Context, apply Applier) error {
	for q.items.Len() > 0 {
		top := q.items[0]
		switch {
		case top.sameOrBefore(q.setID, q.blockNumber):
			heap.Pop(&q.items)
		case top.SetID == q.setID && top.BlockNumber == q.blockNumber+1:
			heap.Pop(&q.items)
			if err := apply(ctx, top); err != nil {
				return fmt.Errorf("justification: apply (set=%d, block=%d): %w", top.SetID, top.BlockNumber, err)
			}
			q.setID, q.blockNumber = top.SetID, top.BlockNumber
		default:
			if !q.warping {
				if err := q.syncer.SyncByHash(ctx, top.Target.Hash); err != nil {
					return fmt.Errorf("justification: sync request: %w", err)
				}
			}
			return nil
		}
	}
	return nil
}

// Warp accepts j out of order as the queue's new trust anchor —
// typically a justification at a far-future set_id delivered by a warp
// sync provider. It is applied immediately regardless of the gap, and
// every pending item it supersedes is discarded. Ordinary sequential
// application resumes for anything still ahead of the new anchor.
func (q *Queue) Warp(ctx context.Context, j Justification, apply Applier) error {
	q.warping = true
	defer func() { q.warping = false }()

	if err := apply(ctx, j); err != nil {
		return fmt.Errorf("justification: warp apply (set=%d, block=%d): %w", j.SetID, j.BlockNumber, err)
	}
	q.setID, q.blockNumber = j.SetID, j.BlockNumber

	kept := make(justHeap, 0, q.items.Len())
	for _, it := range q.items {
		if !it.sameOrBefore(q.setID, q.blockNumber) {
			kept = append(kept, it)
		}
	}
	heap.Init(&kept)
	q.items = kept

	return q.drain(ctx, apply)
}

// Applied returns the (set_id, block_number) of the last justification
// this queue has applied.
func (q *Queue) Applied() (setID, blockNumber uint64) { return q.setID, q.blockNumber }

// Pending returns the number of justifications waiting to be applied.
func (q *Queue) Pending() int { return q.items.Len() }
