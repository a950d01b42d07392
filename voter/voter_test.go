// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package voter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/grandpa"
)

func ids(bs ...byte) grandpa.VoterID {
	var id grandpa.VoterID
	copy(id[:], bs)
	return id
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New(1, nil)
	require.ErrorIs(t, err, ErrEmptySet)
}

func TestNewRejectsDuplicate(t *testing.T) {
	a := ids(1)
	_, err := New(1, []Entry{{ID: a, Weight: 1}, {ID: a, Weight: 1}})
	require.ErrorIs(t, err, ErrDuplicateVoter)
}

func TestNewRejectsZeroWeight(t *testing.T) {
	_, err := New(1, []Entry{{ID: ids(1), Weight: 0}})
	require.ErrorIs(t, err, ErrZeroWeight)
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		weights []uint64
		want    uint64
	}{
		{[]uint64{1, 1, 1, 1}, 3},  // total 4 -> floor(8/3)+1 = 2+1 = 3
		{[]uint64{1, 1, 1}, 3},     // total 3 -> floor(6/3)+1 = 2+1 = 3
		{[]uint64{1, 1, 1, 1, 1}, 4}, // total 5 -> floor(10/3)+1 = 3+1 = 4
		{[]uint64{10}, 7},          // total 10 -> floor(20/3)+1 = 6+1 = 7
	}
	for _, tt := range tests {
		entries := make([]Entry, len(tt.weights))
		for i, w := range tt.weights {
			entries[i] = Entry{ID: ids(byte(i + 1)), Weight: w}
		}
		set, err := New(1, entries)
		require.NoError(t, err)
		require.Equal(t, tt.want, set.Threshold())
	}
}

func TestIndexAndWeight(t *testing.T) {
	a, b := ids(1), ids(2)
	set, err := New(7, []Entry{{ID: a, Weight: 3}, {ID: b, Weight: 5}})
	require.NoError(t, err)

	require.Equal(t, uint64(7), set.SetID())
	require.Equal(t, 2, set.Size())
	require.Equal(t, uint64(8), set.TotalWeight())

	idx, w, ok := set.IndexAndWeight(a)
	require.True(t, ok)
	require.Equal(t, 0, idx)
	require.Equal(t, uint64(3), w)

	idx, w, ok = set.IndexAndWeight(b)
	require.True(t, ok)
	require.Equal(t, 1, idx)
	require.Equal(t, uint64(5), w)

	_, _, ok = set.IndexAndWeight(ids(9))
	require.False(t, ok)
}

func TestEntriesIsACopy(t *testing.T) {
	set, err := New(1, []Entry{{ID: ids(1), Weight: 1}})
	require.NoError(t, err)

	entries := set.Entries()
	entries[0].Weight = 99

	w, _ := set.WeightOf(ids(1))
	require.Equal(t, uint64(1), w)
}
