// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package justification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/grandpa"
)

type fakeSyncer struct {
	requests []grandpa.BlockHash
}

func (f *fakeSyncer) SyncByHash(_ context.Context, hash grandpa.BlockHash) error {
	f.requests = append(f.requests, hash)
	return nil
}

func target(n uint64, b byte) grandpa.BlockInfo {
	var h grandpa.BlockHash
	h[0] = b
	return grandpa.BlockInfo{Number: n, Hash: h}
}

func TestQueueAppliesInOrder(t *testing.T) {
	syncer := &fakeSyncer{}
	q := NewQueue(1, 0, syncer)

	var applied []Justification
	apply := func(_ context.Context, j Justification) error {
		applied = append(applied, j)
		return nil
	}

	ctx := context.Background()
	require.NoError(t, q.Push(ctx, Justification{SetID: 1, BlockNumber: 1, Target: target(1, 0x01)}, apply))
	require.NoError(t, q.Push(ctx, Justification{SetID: 1, BlockNumber: 2, Target: target(2, 0x02)}, apply))

	require.Len(t, applied, 2)
	require.Equal(t, uint64(1), applied[0].BlockNumber)
	require.Equal(t, uint64(2), applied[1].BlockNumber)
	require.Empty(t, syncer.requests)

	gotSet, gotNum := q.Applied()
	require.Equal(t, uint64(1), gotSet)
	require.Equal(t, uint64(2), gotNum)
}

func TestQueueGapTriggersSyncThenDrains(t *testing.T) {
	syncer := &fakeSyncer{}
	q := NewQueue(1, 0, syncer)

	var applied []Justification
	apply := func(_ context.Context, j Justification) error {
		applied = append(applied, j)
		return nil
	}

	ctx := context.Background()
	ahead := Justification{SetID: 1, BlockNumber: 3, Target: target(3, 0x03)}
	require.NoError(t, q.Push(ctx, ahead, apply))

	require.Empty(t, applied)
	require.Len(t, syncer.requests, 1)
	require.Equal(t, ahead.Target.Hash, syncer.requests[0])

	require.NoError(t, q.Push(ctx, Justification{SetID: 1, BlockNumber: 1, Target: target(1, 0x01)}, apply))
	require.NoError(t, q.Push(ctx, Justification{SetID: 1, BlockNumber: 2, Target: target(2, 0x02)}, apply))

	require.Len(t, applied, 3)
	require.Equal(t, []uint64{1, 2, 3}, []uint64{applied[0].BlockNumber, applied[1].BlockNumber, applied[2].BlockNumber})
}

func TestQueueWarpAcceptsFarFutureAnchor(t *testing.T) {
	syncer := &fakeSyncer{}
	q := NewQueue(1, 0, syncer)

	var applied []Justification
	apply := func(_ context.Context, j Justification) error {
		applied = append(applied, j)
		return nil
	}

	ctx := context.Background()
	// A stale pending item below the warp anchor must be discarded.
	require.NoError(t, q.Push(ctx, Justification{SetID: 1, BlockNumber: 5, Target: target(5, 0x05)}, apply))
	require.Empty(t, applied) // gap, not applied yet

	anchor := Justification{SetID: 4, BlockNumber: 1000, Target: target(1000, 0xAA)}
	require.NoError(t, q.Warp(ctx, anchor, apply))

	require.Len(t, applied, 1)
	require.Equal(t, anchor, applied[0])
	require.Equal(t, 0, q.Pending())

	setID, num := q.Applied()
	require.Equal(t, uint64(4), setID)
	require.Equal(t, uint64(1000), num)
}
