// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vote

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWeightSetIsIdempotent(t *testing.T) {
	w := NewWeight()
	w.SetPrevote(0, 5)
	w.SetPrevote(0, 5)
	require.Equal(t, uint64(5), w.Prevote())

	w.SetPrecommit(1, 3)
	require.Equal(t, uint64(3), w.Precommit())
}

func TestWeightMergeNoDoubleCount(t *testing.T) {
	weights := map[int]uint64{0: 2, 1: 3, 2: 4}
	lookup := func(i int) uint64 { return weights[i] }

	a := NewWeight()
	a.SetPrevote(0, weights[0])
	a.SetPrevote(1, weights[1])

	b := NewWeight()
	b.SetPrevote(1, weights[1]) // overlaps with a
	b.SetPrevote(2, weights[2])

	a.Merge(b, lookup)
	require.Equal(t, uint64(9), a.Prevote()) // 2+3+4, voter 1 counted once
}

func TestWeightClone(t *testing.T) {
	a := NewWeight()
	a.SetPrevote(0, 5)
	b := a.Clone()
	b.SetPrevote(1, 1)

	require.Equal(t, uint64(5), a.Prevote())
	require.Equal(t, uint64(6), b.Prevote())
}
