// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package round implements a single GRANDPA voting round (spec
// §4.6): the Start/Proposed/Prevoted/Precommitted phase machine, our
// own prevote and precommit algorithms, the estimate/completability/
// finalization recomputation that runs after every vote, equivocation
// accounting, and catch-up response assembly.
//
// A Round holds only the collaborator interfaces it needs (Chain,
// network.Transmitter) — never a reference back to the coordinator
// that owns it, matching the "no cyclic object graph" design note.
package round

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/grandpa"
	"github.com/luxfi/grandpa/chain"
	"github.com/luxfi/grandpa/gcrypto"
	"github.com/luxfi/grandpa/network"
	"github.com/luxfi/grandpa/vote"
	"github.com/luxfi/grandpa/votegraph"
	"github.com/luxfi/grandpa/voter"
)

// Phase is one state of the round's Start→Proposed→Prevoted→
// Precommitted→Completed machine (spec §4.6.1).
type Phase int

const (
	PhaseStart Phase = iota
	PhaseProposed
	PhasePrevoted
	PhasePrecommitted
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseProposed:
		return "proposed"
	case PhasePrevoted:
		return "prevoted"
	case PhasePrecommitted:
		return "precommitted"
	case PhaseCompleted:
		return "completed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ErrNotPrimary is returned by OnProposal when a PrimaryPropose
// arrives from a voter other than this round's primary_of — a
// protocol fault (spec §4.6.2); the message is dropped, not counted.
var ErrNotPrimary = errors.New("round: proposal from non-primary voter")

// ErrUnknownVoter is returned by OnVote for a signed message whose ID
// is not a member of the round's voter set.
var ErrUnknownVoter = errors.New("round: signer not in voter set")

// Config bundles everything a Round needs at construction.
type Config struct {
	Number uint64
	SetID  uint64
	Voters *voter.Set

	// Base is the graph's root: the previous round's finalized block
	// (or the genesis block for round 0).
	Base grandpa.BlockInfo

	Chain       chain.Chain
	Transmitter network.Transmitter

	// BaseDuration is T in the spec's T_p = T_v = 2T.
	BaseDuration time.Duration

	// Signer is this node's own signing key. Leave nil to run as an
	// observer: the round still tracks votes and recomputes state but
	// never casts its own.
	Signer gcrypto.Signer
}

// Round runs one voting round to completion.
type Round struct {
	number uint64
	setID  uint64
	voters *voter.Set
	base   grandpa.BlockInfo

	chainColl   chain.Chain
	transmitter network.Transmitter

	baseDuration time.Duration
	signer       gcrypto.Signer
	isVoter      bool
	ourIndex     int
	ourID        grandpa.VoterID

	graph      *votegraph.Graph
	prevotes   *vote.Tracker
	precommits *vote.Tracker

	phase            Phase
	primaryProposal  *grandpa.BlockInfo
	ourPrevoteCast   bool
	ourPrecommitCast bool

	prevoteGhost *grandpa.BlockInfo
	estimate     *grandpa.BlockInfo
	finalized    *grandpa.BlockInfo
	completable  bool

	equivocations []grandpa.EquivocationPair
}

// New constructs a round rooted at cfg.Base, in PhaseStart.
func New(cfg Config) *Round {
	r := &Round{
		number:       cfg.Number,
		setID:        cfg.SetID,
		voters:       cfg.Voters,
		base:         cfg.Base,
		chainColl:    cfg.Chain,
		transmitter:  cfg.Transmitter,
		baseDuration: cfg.BaseDuration,
		signer:       cfg.Signer,
		graph:        votegraph.New(cfg.Base, weightOf(cfg.Voters)),
		prevotes:     vote.NewTracker(),
		precommits:   vote.NewTracker(),
		phase:        PhaseStart,
	}
	if cfg.Signer != nil {
		if idx, ok := cfg.Voters.IndexOf(cfg.Signer.PublicKey()); ok {
			r.isVoter = true
			r.ourIndex = idx
			r.ourID = cfg.Signer.PublicKey()
		}
	}
	return r
}

func weightOf(voters *voter.Set) func(int) uint64 {
	return func(idx int) uint64 { return voters.Nth(idx).Weight }
}

// PrimaryOf returns the designated proposer for round number n within
// voters: voters[n mod size] (spec §4.6.2).
func PrimaryOf(number uint64, voters *voter.Set) grandpa.VoterID {
	return voters.Nth(int(number % uint64(voters.Size()))).ID
}

func (r *Round) isPrimary() bool {
	return r.isVoter && r.ourID == PrimaryOf(r.number, r.voters)
}

// Number returns the round number.
func (r *Round) Number() uint64 { return r.number }

// Phase returns the round's current phase.
func (r *Round) Phase() Phase { return r.phase }

// ProposeDeadline returns T_p, the duration the coordinator should
// wait before calling OnProposeTimeout if no proposal has arrived.
func (r *Round) ProposeDeadline() time.Duration { return 2 * r.baseDuration }

// PrevoteDeadline returns T_v, the duration the coordinator should
// wait before calling OnPrevoteTimeout.
func (r *Round) PrevoteDeadline() time.Duration { return 2 * r.baseDuration }

// Start enters PhaseProposed. If this node is the round's primary
// proposer it immediately broadcasts a PrimaryPropose and advances
// straight to PhasePrevoted, since broadcasting counts as "sent" in
// the Proposed phase's exit condition.
func (r *Round) Start(ctx context.Context) error {
	if r.phase != PhaseStart {
		return nil
	}
	r.phase = PhaseProposed
	if !r.isPrimary() {
		return nil
	}
	if err := r.broadcastProposal(ctx); err != nil {
		return err
	}
	return r.enterPrevoted(ctx)
}

func (r *Round) broadcastProposal(ctx context.Context) error {
	best, err := r.chainColl.BestChainContaining(ctx, r.base)
	if err != nil {
		return fmt.Errorf("round: propose: %w", err)
	}
	msg := gcrypto.Sign(r.signer, grandpa.NewVote(grandpa.PrimaryPropose, best), r.number, r.setID)
	r.primaryProposal = &best
	if r.transmitter == nil {
		return nil
	}
	return r.transmitter.GossipVote(ctx, network.VoteMessage{RoundNumber: r.number, SetID: r.setID, Message: msg})
}

// OnProposal handles an incoming PrimaryPropose. A proposal from any
// voter other than this round's primary is a protocol fault: it is
// dropped and does not affect prevote target computation (spec
// §4.6.2, testable property 5).
func (r *Round) OnProposal(ctx context.Context, msg grandpa.SignedMessage) error {
	primary := PrimaryOf(r.number, r.voters)
	if msg.ID != primary {
		return fmt.Errorf("%w: got %s want %s", ErrNotPrimary, msg.ID, primary)
	}
	target := msg.Message.Target
	r.primaryProposal = &target
	if r.phase == PhaseProposed {
		return r.enterPrevoted(ctx)
	}
	return nil
}

// OnProposeTimeout is called by the coordinator's executor when
// ProposeDeadline elapses with no proposal sent or received.
func (r *Round) OnProposeTimeout(ctx context.Context) error {
	if r.phase != PhaseProposed {
		return nil
	}
	return r.enterPrevoted(ctx)
}

func (r *Round) enterPrevoted(ctx context.Context) error {
	r.phase = PhasePrevoted
	if r.isVoter && !r.ourPrevoteCast {
		return r.castOurPrevote(ctx)
	}
	return nil
}

// castOurPrevote implements Algorithm 4.6's prevote-target selection
// (spec §4.6.3).
func (r *Round) castOurPrevote(ctx context.Context) error {
	best, err := r.chainColl.BestChainContaining(ctx, r.base)
	if err != nil {
		return fmt.Errorf("round: prevote: %w", err)
	}
	target := best
	if r.primaryProposal != nil {
		p := *r.primaryProposal
		if p.Number > r.base.Number {
			onChain, err := r.chainColl.IsDescendant(ctx, p.Hash, target.Hash)
			if err == nil && onChain {
				target = p
			}
		}
	}

	msg := gcrypto.Sign(r.signer, grandpa.NewVote(grandpa.Prevote, target), r.number, r.setID)
	r.ourPrevoteCast = true
	if err := r.recordVote(ctx, r.ourIndex, r.voters.Nth(r.ourIndex).Weight, msg); err != nil {
		return err
	}
	if r.transmitter == nil {
		return nil
	}
	return r.transmitter.GossipVote(ctx, network.VoteMessage{RoundNumber: r.number, SetID: r.setID, Message: msg})
}

// OnPrevoteTimeout is called when PrevoteDeadline elapses. Per the
// exit condition for Prevoted (timer AND our prevote broadcast), a
// voter who has not yet cast its own prevote casts it now before the
// phase advances.
func (r *Round) OnPrevoteTimeout(ctx context.Context) error {
	if r.phase != PhasePrevoted {
		return nil
	}
	if r.isVoter && !r.ourPrevoteCast {
		if err := r.castOurPrevote(ctx); err != nil {
			return err
		}
	}
	return r.enterPrecommitted(ctx)
}

func (r *Round) enterPrecommitted(ctx context.Context) error {
	r.phase = PhasePrecommitted
	if r.isVoter && !r.ourPrecommitCast {
		return r.castOurPrecommit(ctx)
	}
	return nil
}

// castOurPrecommit implements spec §4.6.4.
func (r *Round) castOurPrecommit(ctx context.Context) error {
	threshold := r.voters.Threshold()
	ghost, ok := r.graph.FindGhost(nil, threshold, grandpa.Prevote)
	if !ok {
		return nil
	}
	msg := gcrypto.Sign(r.signer, grandpa.NewVote(grandpa.Precommit, ghost), r.number, r.setID)
	r.ourPrecommitCast = true
	if err := r.recordVote(ctx, r.ourIndex, r.voters.Nth(r.ourIndex).Weight, msg); err != nil {
		return err
	}
	if r.transmitter == nil {
		return nil
	}
	return r.transmitter.GossipVote(ctx, network.VoteMessage{RoundNumber: r.number, SetID: r.setID, Message: msg})
}

// OnVote handles an incoming Prevote or Precommit already verified by
// the coordinator (spec §4.7.2 routes verification ahead of dispatch).
func (r *Round) OnVote(ctx context.Context, msg grandpa.SignedMessage) error {
	idx, weight, ok := r.voters.IndexAndWeight(msg.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVoter, msg.ID)
	}
	return r.recordVote(ctx, idx, weight, msg)
}

func (r *Round) recordVote(ctx context.Context, voterIndex int, weight uint64, msg grandpa.SignedMessage) error {
	var tracker *vote.Tracker
	switch msg.Message.Type {
	case grandpa.Prevote:
		tracker = r.prevotes
	case grandpa.Precommit:
		tracker = r.precommits
	default:
		return fmt.Errorf("round: unexpected vote type %s in OnVote", msg.Message.Type)
	}

	outcome, pair := tracker.Push(voterIndex, msg)
	switch outcome {
	case vote.Duplicate:
		return nil
	case vote.Equivocation:
		r.equivocations = append(r.equivocations, *pair)
		if err := r.insertIntoGraph(ctx, voterIndex, weight, msg.Message.Target, msg.Message.Type); err != nil {
			return err
		}
	case vote.FirstSeen:
		if err := r.insertIntoGraph(ctx, voterIndex, weight, msg.Message.Target, msg.Message.Type); err != nil {
			return err
		}
	}

	r.recompute()
	if r.phase == PhasePrecommitted && r.completable {
		r.phase = PhaseCompleted
	}
	return nil
}

// insertIntoGraph resolves target's ancestry against the round's
// base via the Chain collaborator and inserts the vote. A failure here
// is the spec §7 "transient" case — the coordinator is expected to
// defer the vote in a pending map keyed by the missing block hash and
// retry once the chain notifies it has arrived.
func (r *Round) insertIntoGraph(ctx context.Context, voterIndex int, weight uint64, target grandpa.BlockInfo, voteType grandpa.VoteType) error {
	ancestry, err := r.chainColl.Ancestry(ctx, r.base, target)
	if err != nil {
		return fmt.Errorf("round: %w", err)
	}
	return r.graph.Insert(target, ancestry, voterIndex, weight, voteType)
}

// Equivocations returns every equivocation proof discovered so far this
// round, across both prevote and precommit.
func (r *Round) Equivocations() []grandpa.EquivocationPair {
	return append([]grandpa.EquivocationPair{}, r.equivocations...)
}

// recompute implements spec §4.6.5, run after every state mutation.
func (r *Round) recompute() {
	threshold := r.voters.Threshold()

	prevoteGhost, ok := r.graph.FindGhost(nil, threshold, grandpa.Prevote)
	if !ok {
		r.prevoteGhost = nil
		r.estimate = nil
		r.finalized = nil
		r.completable = false
		return
	}
	pg := prevoteGhost
	r.prevoteGhost = &pg

	totalCast := r.prevotes.TotalWeight(weightOf(r.voters))
	equivWeight := r.prevotes.EquivocatorsWeight(weightOf(r.voters))

	estimate := r.computeEstimate(pg, totalCast, equivWeight, threshold)
	est := estimate
	r.estimate = &est

	if estimate.Number < pg.Number {
		r.completable = true
	} else {
		r.completable = r.noChildCanOvertake(estimate, totalCast, equivWeight, threshold)
	}

	precommitGhost, ok := r.graph.FindGhost(nil, threshold, grandpa.Precommit)
	if ok && (precommitGhost.Hash == estimate.Hash || r.graph.FindAncestor(estimate.Hash, precommitGhost.Hash)) {
		f := precommitGhost
		r.finalized = &f
	} else {
		r.finalized = nil
	}
}

// computeEstimate walks from prevoteGhost back toward base, returning
// the highest block at which the prevote weight cast outside that
// block's subtree, plus the equivocators' weight counted once more,
// is below threshold (spec §4.6.5). It returns base if no block on the
// walk qualifies.
func (r *Round) computeEstimate(prevoteGhost grandpa.BlockInfo, totalCast, equivWeight, threshold uint64) grandpa.BlockInfo {
	hash, current := prevoteGhost.Hash, prevoteGhost
	for {
		w, _ := r.graph.WeightAt(hash)
		remaining := totalCast - w.Prevote() + equivWeight
		if remaining < threshold {
			return current
		}
		parent, ok := r.graph.Parent(hash)
		if !ok {
			return r.base
		}
		hash, current = parent.Hash, parent
	}
}

// noChildCanOvertake reports whether no immediate child of estimate
// passes the same test computeEstimate applies (prevote weight cast
// outside the child's subtree, plus equivocator weight, below
// threshold) — i.e. find_ghost(Prevote, estimate, remaining<threshold)
// would stop at estimate itself (spec §4.6.5's completable second
// disjunct).
func (r *Round) noChildCanOvertake(estimate grandpa.BlockInfo, totalCast, equivWeight, threshold uint64) bool {
	for _, child := range r.graph.Children(estimate.Hash) {
		w, ok := r.graph.WeightAt(child)
		if !ok {
			continue
		}
		remaining := totalCast - w.Prevote() + equivWeight
		if remaining < threshold {
			return false
		}
	}
	return true
}

// PrevoteGhost returns the current prevote-GHOST block, if any votes
// have been recorded yet.
func (r *Round) PrevoteGhost() (grandpa.BlockInfo, bool) {
	if r.prevoteGhost == nil {
		return grandpa.BlockInfo{}, false
	}
	return *r.prevoteGhost, true
}

// Estimate returns the round's current estimate.
func (r *Round) Estimate() (grandpa.BlockInfo, bool) {
	if r.estimate == nil {
		return grandpa.BlockInfo{}, false
	}
	return *r.estimate, true
}

// Finalized returns the block this round has finalized, if any.
func (r *Round) Finalized() (grandpa.BlockInfo, bool) {
	if r.finalized == nil {
		return grandpa.BlockInfo{}, false
	}
	return *r.finalized, true
}

// Completable reports whether the round's completable flag currently
// holds — the coordinator's precondition for starting round+1.
func (r *Round) Completable() bool { return r.completable }

// CatchUpResponse assembles the response to a request for this round,
// once it has something finalized (spec §4.6.7). ok is false if this
// round has not yet finalized anything.
func (r *Round) CatchUpResponse() (network.CatchUpResponse, bool) {
	if r.finalized == nil {
		return network.CatchUpResponse{}, false
	}
	best := *r.finalized

	var prevotes, precommits []grandpa.SignedMessage
	for msg := range r.prevotes.Messages() {
		if r.onChainOfOrEqual(msg.Message.Target.Hash, best.Hash) {
			prevotes = append(prevotes, msg)
		}
	}
	for msg := range r.precommits.Messages() {
		if r.onChainOfOrEqual(msg.Message.Target.Hash, best.Hash) {
			precommits = append(precommits, msg)
		}
	}

	return network.CatchUpResponse{
		RoundNumber:        r.number,
		SetID:              r.setID,
		Prevotes:           prevotes,
		Precommits:         precommits,
		LastFinalizedBlock: best,
	}, true
}

func (r *Round) onChainOfOrEqual(ancestor, descendant grandpa.BlockHash) bool {
	return ancestor == descendant || r.graph.FindAncestor(ancestor, descendant)
}

// Nudge re-drives whichever phase-exit handler is pending for the
// round's current phase. The coordinator's liveness watchdog calls this
// when its round-id counter hasn't advanced across a tick, recovering
// from a timer wakeup lost to a scheduler hiccup without restarting the
// process (spec §4.7.1).
func (r *Round) Nudge(ctx context.Context) error {
	switch r.phase {
	case PhaseProposed:
		return r.OnProposeTimeout(ctx)
	case PhasePrevoted:
		return r.OnPrevoteTimeout(ctx)
	default:
		return nil
	}
}
