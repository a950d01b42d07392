// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage persists the coordinator's movable round state and
// authority-set history so a restarted node resumes voting rather
// than starting finality over from genesis.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/luxfi/database"

	"github.com/luxfi/grandpa"
)

// Canonical key prefixes. Every key grandpa writes starts with one of
// these, so a shared database can host grandpa alongside unrelated
// state without collision.
var (
	setStateKey      = []byte("grandpa/set-state")
	authoritySetKey  = []byte("grandpa/authority-set/")
	genesisBlockKey  = []byte("grandpa/genesis-hash")
)

// Storage is the persistence collaborator grandpa's coordinator uses
// to checkpoint round state and authority-set history across restarts.
type Storage interface {
	// SaveRoundState persists the movable state of the last completed
	// round, overwriting any previous checkpoint.
	SaveRoundState(state grandpa.MovableRoundState) error

	// LoadRoundState returns the last checkpoint, or ok=false if none
	// has ever been saved (a fresh chain).
	LoadRoundState() (state grandpa.MovableRoundState, ok bool, err error)

	// SaveAuthoritySet persists the authority roster effective from
	// setID onward, so it can be recovered without replaying every
	// authority-set change from genesis.
	SaveAuthoritySet(setID uint64, entries []AuthorityEntry) error

	// LoadAuthoritySet returns the roster for setID, or ok=false if
	// never saved.
	LoadAuthoritySet(setID uint64) (entries []AuthorityEntry, ok bool, err error)

	// SaveGenesisHash records the chain's genesis block hash, used to
	// detect a database being reused across a chain reset.
	SaveGenesisHash(hash grandpa.BlockHash) error

	// LoadGenesisHash returns the previously recorded genesis hash, or
	// ok=false if never saved.
	LoadGenesisHash() (hash grandpa.BlockHash, ok bool, err error)
}

// AuthorityEntry mirrors voter.Entry without importing the voter
// package, keeping storage's dependency graph a leaf.
type AuthorityEntry struct {
	ID     grandpa.VoterID
	Weight uint64
}

// kvStorage implements Storage over a github.com/luxfi/database.Database
// handle, the same key-value store the rest of the host node uses.
type kvStorage struct {
	db database.Database
}

// New wraps db as a Storage.
func New(db database.Database) Storage {
	return &kvStorage{db: db}
}

func (s *kvStorage) SaveRoundState(state grandpa.MovableRoundState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("storage: marshal round state: %w", err)
	}
	return s.db.Put(setStateKey, b)
}

func (s *kvStorage) LoadRoundState() (grandpa.MovableRoundState, bool, error) {
	b, err := s.db.Get(setStateKey)
	if err != nil {
		return grandpa.MovableRoundState{}, false, nil
	}
	var state grandpa.MovableRoundState
	if err := json.Unmarshal(b, &state); err != nil {
		return grandpa.MovableRoundState{}, false, fmt.Errorf("storage: unmarshal round state: %w", err)
	}
	return state, true, nil
}

func (s *kvStorage) SaveAuthoritySet(setID uint64, entries []AuthorityEntry) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("storage: marshal authority set %d: %w", setID, err)
	}
	return s.db.Put(authoritySetDBKey(setID), b)
}

func (s *kvStorage) LoadAuthoritySet(setID uint64) ([]AuthorityEntry, bool, error) {
	b, err := s.db.Get(authoritySetDBKey(setID))
	if err != nil {
		return nil, false, nil
	}
	var entries []AuthorityEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, false, fmt.Errorf("storage: unmarshal authority set %d: %w", setID, err)
	}
	return entries, true, nil
}

func (s *kvStorage) SaveGenesisHash(hash grandpa.BlockHash) error {
	return s.db.Put(genesisBlockKey, hash[:])
}

func (s *kvStorage) LoadGenesisHash() (grandpa.BlockHash, bool, error) {
	b, err := s.db.Get(genesisBlockKey)
	if err != nil {
		return grandpa.BlockHash{}, false, nil
	}
	var hash grandpa.BlockHash
	copy(hash[:], b)
	return hash, true, nil
}

func authoritySetDBKey(setID uint64) []byte {
	key := make([]byte, len(authoritySetKey)+8)
	copy(key, authoritySetKey)
	binary.BigEndian.PutUint64(key[len(authoritySetKey):], setID)
	return key
}
