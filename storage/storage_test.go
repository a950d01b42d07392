// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/grandpa"
)

func TestMemStorageRoundTrip(t *testing.T) {
	s := NewMemStorage()

	_, ok, err := s.LoadRoundState()
	require.NoError(t, err)
	require.False(t, ok)

	state := grandpa.MovableRoundState{RoundNumber: 4, LastFinalizedBlock: grandpa.BlockInfo{Number: 10}}
	require.NoError(t, s.SaveRoundState(state))

	got, ok, err := s.LoadRoundState()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, state, got)
}

func TestMemStorageAuthoritySet(t *testing.T) {
	s := NewMemStorage()
	entries := []AuthorityEntry{{ID: grandpa.VoterID{1}, Weight: 5}}

	require.NoError(t, s.SaveAuthoritySet(2, entries))

	got, ok, err := s.LoadAuthoritySet(2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entries, got)

	_, ok, err = s.LoadAuthoritySet(99)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStorageGenesisHash(t *testing.T) {
	s := NewMemStorage()
	_, ok, _ := s.LoadGenesisHash()
	require.False(t, ok)

	hash := grandpa.BlockHash{0xAB}
	require.NoError(t, s.SaveGenesisHash(hash))

	got, ok, err := s.LoadGenesisHash()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, hash, got)
}
