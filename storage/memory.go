// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import "github.com/luxfi/grandpa"

// MemStorage is an in-memory Storage, used by tests and by
// single-process deployments that accept losing round state across a
// restart.
type MemStorage struct {
	roundState  *grandpa.MovableRoundState
	authSets    map[uint64][]AuthorityEntry
	genesisHash *grandpa.BlockHash
}

// NewMemStorage returns an empty MemStorage.
func NewMemStorage() *MemStorage {
	return &MemStorage{authSets: make(map[uint64][]AuthorityEntry)}
}

func (m *MemStorage) SaveRoundState(state grandpa.MovableRoundState) error {
	s := state
	m.roundState = &s
	return nil
}

func (m *MemStorage) LoadRoundState() (grandpa.MovableRoundState, bool, error) {
	if m.roundState == nil {
		return grandpa.MovableRoundState{}, false, nil
	}
	return *m.roundState, true, nil
}

func (m *MemStorage) SaveAuthoritySet(setID uint64, entries []AuthorityEntry) error {
	cp := make([]AuthorityEntry, len(entries))
	copy(cp, entries)
	m.authSets[setID] = cp
	return nil
}

func (m *MemStorage) LoadAuthoritySet(setID uint64) ([]AuthorityEntry, bool, error) {
	entries, ok := m.authSets[setID]
	return entries, ok, nil
}

func (m *MemStorage) SaveGenesisHash(hash grandpa.BlockHash) error {
	m.genesisHash = &hash
	return nil
}

func (m *MemStorage) LoadGenesisHash() (grandpa.BlockHash, bool, error) {
	if m.genesisHash == nil {
		return grandpa.BlockHash{}, false, nil
	}
	return *m.genesisHash, true, nil
}
