// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coord

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"

	"github.com/luxfi/grandpa"
	"github.com/luxfi/grandpa/config"
	"github.com/luxfi/grandpa/gcrypto"
	"github.com/luxfi/grandpa/justification"
	"github.com/luxfi/grandpa/network"
	"github.com/luxfi/grandpa/storage"
	"github.com/luxfi/grandpa/telemetry"
	"github.com/luxfi/grandpa/voter"
)

var errUnknownBlock = errors.New("coord_test: unknown block")

type fakeChain struct {
	blocks map[grandpa.BlockHash]grandpa.BlockInfo
	parent map[grandpa.BlockHash]grandpa.BlockHash
	best   grandpa.BlockInfo
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		blocks: make(map[grandpa.BlockHash]grandpa.BlockInfo),
		parent: make(map[grandpa.BlockHash]grandpa.BlockHash),
	}
}

func (c *fakeChain) add(info, parent grandpa.BlockInfo) {
	c.blocks[info.Hash] = info
	c.parent[info.Hash] = parent.Hash
}

func (c *fakeChain) BlockInfo(_ context.Context, hash grandpa.BlockHash) (grandpa.BlockInfo, error) {
	info, ok := c.blocks[hash]
	if !ok {
		return grandpa.BlockInfo{}, errUnknownBlock
	}
	return info, nil
}

func (c *fakeChain) Ancestry(_ context.Context, base, target grandpa.BlockInfo) ([]grandpa.BlockInfo, error) {
	var reversed []grandpa.BlockInfo
	hash := target.Hash
	for hash != base.Hash {
		parentHash, ok := c.parent[hash]
		if !ok {
			return nil, errUnknownBlock
		}
		if parentHash == base.Hash {
			break
		}
		parentInfo := c.blocks[parentHash]
		reversed = append(reversed, parentInfo)
		hash = parentHash
	}
	out := make([]grandpa.BlockInfo, len(reversed))
	for i, info := range reversed {
		out[len(reversed)-1-i] = info
	}
	return out, nil
}

func (c *fakeChain) IsDescendant(_ context.Context, ancestor, descendant grandpa.BlockHash) (bool, error) {
	hash := descendant
	for {
		if hash == ancestor {
			return true, nil
		}
		parentHash, ok := c.parent[hash]
		if !ok {
			return false, nil
		}
		hash = parentHash
	}
}

func (c *fakeChain) BestChainContaining(_ context.Context, _ grandpa.BlockInfo) (grandpa.BlockInfo, error) {
	return c.best, nil
}

func (c *fakeChain) Leaves(_ context.Context) ([]grandpa.BlockInfo, error) { return nil, nil }

func (c *fakeChain) LastFinalized(_ context.Context) (grandpa.BlockInfo, error) {
	return grandpa.BlockInfo{}, nil
}

type fakeTransmitter struct {
	votes   []network.VoteMessage
	commits []network.CommitMessage
}

func (f *fakeTransmitter) GossipVote(_ context.Context, msg network.VoteMessage) error {
	f.votes = append(f.votes, msg)
	return nil
}
func (f *fakeTransmitter) GossipCommit(_ context.Context, msg network.CommitMessage) error {
	f.commits = append(f.commits, msg)
	return nil
}
func (f *fakeTransmitter) SendCatchUpRequest(_ context.Context, _ ids.NodeID, _ network.CatchUpRequest) error {
	return nil
}
func (f *fakeTransmitter) SendCatchUpResponse(_ context.Context, _ ids.NodeID, _ network.CatchUpResponse) error {
	return nil
}

type fakeStorage struct {
	roundState    grandpa.MovableRoundState
	haveRound     bool
	authoritySets map[uint64][]storage.AuthorityEntry
	genesis       grandpa.BlockHash
	haveGenesis   bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{authoritySets: make(map[uint64][]storage.AuthorityEntry)}
}

func (s *fakeStorage) SaveRoundState(state grandpa.MovableRoundState) error {
	s.roundState = state
	s.haveRound = true
	return nil
}
func (s *fakeStorage) LoadRoundState() (grandpa.MovableRoundState, bool, error) {
	return s.roundState, s.haveRound, nil
}
func (s *fakeStorage) SaveAuthoritySet(setID uint64, entries []storage.AuthorityEntry) error {
	s.authoritySets[setID] = entries
	return nil
}
func (s *fakeStorage) LoadAuthoritySet(setID uint64) ([]storage.AuthorityEntry, bool, error) {
	entries, ok := s.authoritySets[setID]
	return entries, ok, nil
}
func (s *fakeStorage) SaveGenesisHash(hash grandpa.BlockHash) error {
	s.genesis, s.haveGenesis = hash, true
	return nil
}
func (s *fakeStorage) LoadGenesisHash() (grandpa.BlockHash, bool, error) {
	return s.genesis, s.haveGenesis, nil
}

type fakeSyncer struct {
	requests []grandpa.BlockHash
}

func (s *fakeSyncer) SyncByHash(_ context.Context, hash grandpa.BlockHash) error {
	s.requests = append(s.requests, hash)
	return nil
}

func blk(n uint64, b byte) grandpa.BlockInfo {
	var h grandpa.BlockHash
	h[0] = b
	h[1] = byte(n)
	return grandpa.BlockInfo{Number: n, Hash: h}
}

type fourSigners struct {
	signers []*gcrypto.InMemorySigner
	voters  *voter.Set
}

func newFourSigners(t *testing.T, setID uint64) fourSigners {
	t.Helper()
	signers := make([]*gcrypto.InMemorySigner, 4)
	entries := make([]voter.Entry, 4)
	for i := range signers {
		s, err := gcrypto.NewInMemorySigner()
		require.NoError(t, err)
		signers[i] = s
		entries[i] = voter.Entry{ID: s.PublicKey(), Weight: 1}
	}
	vs, err := voter.New(setID, entries)
	require.NoError(t, err)
	return fourSigners{signers: signers, voters: vs}
}

func (f fourSigners) vote(i int, roundNumber, setID uint64, t grandpa.VoteType, target grandpa.BlockInfo) network.VoteMessage {
	msg := gcrypto.Sign(f.signers[i], grandpa.NewVote(t, target), roundNumber, setID)
	return network.VoteMessage{RoundNumber: roundNumber, SetID: setID, Message: msg}
}

func newCoordinator(t *testing.T, chainColl *fakeChain, st storage.Storage, tx network.Transmitter, syncer justification.Syncer, genesis grandpa.BlockInfo, voters *voter.Set) *Coordinator {
	t.Helper()
	return New(Config{
		Genesis:     genesis,
		SetID:       voters.SetID(),
		Voters:      voters,
		Params:      config.Local(),
		Chain:       chainColl,
		Storage:     st,
		Transmitter: tx,
		Metrics:     telemetry.NewNoOp(),
		Syncer:      syncer,
	})
}

// TestDispatchFinalizesAndAdvances drives a full round to completion via
// Dispatch, then confirms the coordinator opened round 1 and persisted
// the finalized block as the last-finalized checkpoint (spec §8's
// "base adjustment" shape: a completed
// round's finalized block becomes the very next round's graph base).
func TestDispatchFinalizesAndAdvances(t *testing.T) {
	genesis := blk(0, 0x00)
	a := blk(1, 0x01)
	chainColl := newFakeChain()
	chainColl.add(a, genesis)
	chainColl.best = a

	fs := newFourSigners(t, 1)
	st := newFakeStorage()
	tx := &fakeTransmitter{}
	syncer := &fakeSyncer{}
	c := newCoordinator(t, chainColl, st, tx, syncer, genesis, fs.voters)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	require.Equal(t, uint64(0), c.Current().Number())

	for i := 0; i < 4; i++ {
		require.NoError(t, c.Dispatch(ctx, fs.vote(i, 0, 1, grandpa.Prevote, a)))
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, c.Dispatch(ctx, fs.vote(i, 0, 1, grandpa.Precommit, a)))
	}

	require.Equal(t, uint64(1), c.Current().Number())
	require.Equal(t, uint64(0), c.Previous().Number())
	require.True(t, st.haveRound)
	require.Equal(t, a, st.roundState.LastFinalizedBlock)
	require.Empty(t, c.InactiveVoters(), "every voter precommitted this round")
}

// TestDispatchDropsBadSignature confirms a forged vote never reaches
// the round and is recorded against the claimed sender instead.
func TestDispatchDropsBadSignature(t *testing.T) {
	genesis := blk(0, 0x00)
	chainColl := newFakeChain()
	chainColl.best = genesis

	fs := newFourSigners(t, 1)
	c := newCoordinator(t, chainColl, newFakeStorage(), &fakeTransmitter{}, &fakeSyncer{}, genesis, fs.voters)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	forged := network.VoteMessage{
		RoundNumber: 0,
		SetID:       1,
		Message: grandpa.SignedMessage{
			Message: grandpa.NewVote(grandpa.Prevote, genesis),
			ID:      fs.signers[0].PublicKey(),
			// Signature left zeroed: does not verify under voter 0's key.
		},
	}
	require.NoError(t, c.Dispatch(ctx, forged))
	require.Equal(t, 1, c.Misbehaving(fs.signers[0].PublicKey()))
	require.Equal(t, uint64(0), c.Current().Number()) // current round untouched, still playable
}

// TestDispatchDropsNonPrimaryProposal exercises the protocol-fault path
// for OnProposal through the coordinator rather than directly against
// round.Round.
func TestDispatchDropsNonPrimaryProposal(t *testing.T) {
	genesis := blk(0, 0x00)
	chainColl := newFakeChain()
	chainColl.best = genesis

	fs := newFourSigners(t, 1)
	c := newCoordinator(t, chainColl, newFakeStorage(), &fakeTransmitter{}, &fakeSyncer{}, genesis, fs.voters)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	// Voter 1 is not round 0's primary (voter 0 is); its proposal is a
	// protocol fault.
	msg := fs.vote(1, 0, 1, grandpa.PrimaryPropose, genesis)
	require.NoError(t, c.Dispatch(ctx, msg))
	require.Equal(t, 1, c.Misbehaving(fs.signers[1].PublicKey()))
}

// TestHandleCommitAppliesAndAdvances exercises the out-of-band commit
// import path (spec §8's "late catch-up" shape): a peer's commit
// message, carrying its own justification, finalizes a block this
// coordinator never voted on directly and still advances round
// chaining past it.
func TestHandleCommitAppliesAndAdvances(t *testing.T) {
	genesis := blk(0, 0x00)
	a := blk(1, 0x01)
	chainColl := newFakeChain()
	chainColl.add(a, genesis)
	chainColl.best = a

	fs := newFourSigners(t, 1)
	st := newFakeStorage()
	c := newCoordinator(t, chainColl, st, &fakeTransmitter{}, &fakeSyncer{}, genesis, fs.voters)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	var precommits []grandpa.SignedMessage
	for i := 0; i < 3; i++ {
		precommits = append(precommits, gcrypto.Sign(fs.signers[i], grandpa.NewVote(grandpa.Precommit, a), 0, 1))
	}
	cm := network.CommitMessage{RoundNumber: 0, SetID: 1, Target: a, Precommits: precommits}

	require.NoError(t, c.HandleCommit(ctx, cm))
	require.Equal(t, uint64(1), c.Current().Number())
	require.Equal(t, a, st.roundState.LastFinalizedBlock)
}

// TestHandleCommitRejectsInsufficientWeight confirms a commit whose
// signers fall short of threshold is dropped without mutating state.
func TestHandleCommitRejectsInsufficientWeight(t *testing.T) {
	genesis := blk(0, 0x00)
	a := blk(1, 0x01)
	chainColl := newFakeChain()
	chainColl.add(a, genesis)
	chainColl.best = a

	fs := newFourSigners(t, 1)
	st := newFakeStorage()
	c := newCoordinator(t, chainColl, st, &fakeTransmitter{}, &fakeSyncer{}, genesis, fs.voters)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	precommits := []grandpa.SignedMessage{
		gcrypto.Sign(fs.signers[0], grandpa.NewVote(grandpa.Precommit, a), 0, 1),
	}
	cm := network.CommitMessage{RoundNumber: 0, SetID: 1, Target: a, Precommits: precommits}

	require.NoError(t, c.HandleCommit(ctx, cm))
	require.Equal(t, uint64(0), c.Current().Number())
	require.False(t, st.haveRound)
}

// TestAuthorityChangeEnacted exercises spec §4.7.3: a scheduled change
// registered against the finalizing block enacts on the next advance,
// producing a fresh round 0 under a new set_id rooted at the
// finalization that enacted it.
func TestAuthorityChangeEnacted(t *testing.T) {
	genesis := blk(0, 0x00)
	a := blk(1, 0x01)
	chainColl := newFakeChain()
	chainColl.add(a, genesis)
	chainColl.best = a

	fs := newFourSigners(t, 1)
	st := newFakeStorage()
	c := newCoordinator(t, chainColl, st, &fakeTransmitter{}, &fakeSyncer{}, genesis, fs.voters)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	nextSigner, err := gcrypto.NewInMemorySigner()
	require.NoError(t, err)
	c.ScheduleChange(a, ScheduledChange{
		NextAuthorities: []voter.Entry{{ID: nextSigner.PublicKey(), Weight: 1}},
		Delay:           0,
	})

	for i := 0; i < 4; i++ {
		require.NoError(t, c.Dispatch(ctx, fs.vote(i, 0, 1, grandpa.Prevote, a)))
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, c.Dispatch(ctx, fs.vote(i, 0, 1, grandpa.Precommit, a)))
	}

	require.Equal(t, uint64(2), c.setID)
	require.Equal(t, uint64(0), c.Current().Number())
	_, ok := st.authoritySets[2]
	require.True(t, ok)
}

// TestWatchdogNudgesStalledRound confirms that when the round-id
// counter hasn't moved since the previous tick, the watchdog re-drives
// the current round's pending phase transition.
func TestWatchdogNudgesStalledRound(t *testing.T) {
	genesis := blk(0, 0x00)
	a := blk(1, 0x01)
	chainColl := newFakeChain()
	chainColl.add(a, genesis)
	chainColl.best = a

	fs := newFourSigners(t, 1)
	c := newCoordinator(t, chainColl, newFakeStorage(), &fakeTransmitter{}, &fakeSyncer{}, genesis, fs.voters)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	require.NoError(t, c.Watchdog(ctx)) // first tick just records the baseline
	require.NoError(t, c.Watchdog(ctx)) // second tick: counter unchanged, nudges
}
