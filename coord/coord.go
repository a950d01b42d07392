// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package coord implements the GRANDPA round-chaining coordinator of
// spec.md §4.7: it owns the current and previous round, persists
// round state and authority-set history, routes inbound vote and
// commit messages, enacts authority-set changes, and runs a liveness
// watchdog that recovers from lost timer wakeups.
package coord

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/grandpa"
	"github.com/luxfi/grandpa/chain"
	"github.com/luxfi/grandpa/config"
	"github.com/luxfi/grandpa/gcrypto"
	"github.com/luxfi/grandpa/justification"
	"github.com/luxfi/grandpa/network"
	"github.com/luxfi/grandpa/round"
	"github.com/luxfi/grandpa/session"
	"github.com/luxfi/grandpa/storage"
	"github.com/luxfi/grandpa/telemetry"
	"github.com/luxfi/grandpa/voter"
)

var (
	// ErrUnknownVoterSet is returned when a commit message names a
	// set_id this coordinator has no roster for.
	ErrUnknownVoterSet = errors.New("coord: unknown voter set")
	// ErrMalformedJustification is returned for a commit whose
	// precommits do not all carry the Precommit variant.
	ErrMalformedJustification = errors.New("coord: malformed justification")
	// ErrTargetNotDescendant is returned when a justification's
	// precommits do not all target the claimed block or a descendant
	// of it.
	ErrTargetNotDescendant = errors.New("coord: precommit target not a descendant of claimed block")
	// ErrInsufficientWeight is returned when a justification's distinct
	// signer weight (equivocators counted once) falls short of
	// threshold.
	ErrInsufficientWeight = errors.New("coord: justification weight below threshold")
)

// ScheduledChange takes effect once finality reaches the block it was
// included in, plus Delay (spec §4.7.3).
type ScheduledChange struct {
	NextAuthorities []voter.Entry
	Delay           uint64
}

// ForcedChange takes effect at Median+Delay regardless of finalization
// progress (spec §4.7.3).
type ForcedChange struct {
	NextAuthorities []voter.Entry
	Delay           uint64
	Median          uint64
}

type pendingChange struct {
	enactAt uint64
	entries []voter.Entry
}

// Config bundles everything a Coordinator needs at construction.
type Config struct {
	Genesis     grandpa.BlockInfo
	SetID       uint64
	Voters      *voter.Set
	Params      config.Parameters
	Chain       chain.Chain
	Storage     storage.Storage
	Transmitter network.Transmitter
	Metrics     *telemetry.Metrics
	Syncer      justification.Syncer
	Signer      gcrypto.Signer // nil runs the node as an observer

	// Notifier is told about every block this coordinator finalizes,
	// fanning out to the host node's registered FinalityObserver set
	// (spec §2's "feeds verified grandpa justifications to block
	// finalization"). Optional: nil skips notification.
	Notifier grandpa.FinalityNotifier
}

// Coordinator drives round chaining end to end.
type Coordinator struct {
	params      config.Parameters
	genesis     grandpa.BlockInfo
	setID       uint64
	voters      *voter.Set
	voterCache  map[uint64]*voter.Set
	chainColl   chain.Chain
	store       storage.Storage
	transmitter network.Transmitter
	metrics     *telemetry.Metrics
	signer      gcrypto.Signer
	notifier    grandpa.FinalityNotifier

	current  *round.Round
	previous *round.Round

	roundCounter        uint64
	lastWatchdogCounter uint64

	justifications *justification.Queue

	pending      map[grandpa.BlockHash][]network.VoteMessage
	pendingOrder []grandpa.BlockHash

	misbehaving map[grandpa.VoterID]int

	// session tracks each voter's recency of participation for the
	// current set, the authority-manager-facing surface spec.md §5
	// describes (§4.9 of the expanded spec); a voter that has voted in
	// this set but is absent from every tick still held becomes a
	// dispute-coordinator input via Inactive.
	session *session.Window

	pendingScheduled *pendingChange
	pendingForced    *pendingChange
}

// New constructs a Coordinator. Call Start to load persisted state (or
// seed genesis) and begin playing the first round.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		params:      cfg.Params,
		genesis:     cfg.Genesis,
		setID:       cfg.SetID,
		voters:      cfg.Voters,
		voterCache:  make(map[uint64]*voter.Set),
		chainColl:   cfg.Chain,
		store:       cfg.Storage,
		transmitter: cfg.Transmitter,
		metrics:     cfg.Metrics,
		signer:      cfg.Signer,
		notifier:    cfg.Notifier,
		pending:     make(map[grandpa.BlockHash][]network.VoteMessage),
		misbehaving: make(map[grandpa.VoterID]int),
		session:     session.New(cfg.Params.SessionWindowSize),
	}
	c.justifications = justification.NewQueue(cfg.SetID, cfg.Genesis.Number, cfg.Syncer)
	return c
}

func (c *Coordinator) baseDuration() uint64 { return uint64(c.params.RoundDuration / 4) }

func (c *Coordinator) newRound(number uint64, setID uint64, voters *voter.Set, base grandpa.BlockInfo) *round.Round {
	return round.New(round.Config{
		Number:       number,
		SetID:        setID,
		Voters:       voters,
		Base:         base,
		Chain:        c.chainColl,
		Transmitter:  c.transmitter,
		BaseDuration: c.params.RoundDuration / 4,
		Signer:       c.signer,
	})
}

// Start loads the last completed round from storage, or seeds round 0
// at genesis if none was ever saved, and plays the resulting round
// (spec §4.7.1).
func (c *Coordinator) Start(ctx context.Context) error {
	state, ok, err := c.store.LoadRoundState()
	if err != nil {
		return fmt.Errorf("coord: load round state: %w", err)
	}

	base := c.genesis
	number := uint64(0)
	if ok {
		base = state.LastFinalizedBlock
		number = state.RoundNumber + 1
	}

	c.current = c.newRound(number, c.setID, c.voters, base)
	c.roundCounter++
	return c.current.Start(ctx)
}

// roundFor returns whichever of the current or previous round matches
// roundNumber, or nil if neither does (spec §4.7.2: route to current
// or previous, else drop).
func (c *Coordinator) roundFor(roundNumber uint64) *round.Round {
	if c.current != nil && c.current.Number() == roundNumber {
		return c.current
	}
	if c.previous != nil && c.previous.Number() == roundNumber {
		return c.previous
	}
	return nil
}

// Dispatch routes an inbound vote message to the matching round after
// verifying its signature. Bad signatures and protocol faults are
// dropped and recorded against the sender's reputation counter, never
// mutating round state (spec §7, §4.7.2).
func (c *Coordinator) Dispatch(ctx context.Context, vm network.VoteMessage) error {
	if err := gcrypto.Verify(vm.Message, vm.RoundNumber, vm.SetID); err != nil {
		c.recordMisbehavior(vm.Message.ID)
		return nil
	}

	if vm.SetID != c.setID {
		return grandpa.ErrSetIDMismatch
	}

	target := c.roundFor(vm.RoundNumber)
	if target == nil {
		return grandpa.ErrRoundMismatch
	}

	var dispatchErr error
	if vm.Message.Message.Type == grandpa.PrimaryPropose {
		dispatchErr = target.OnProposal(ctx, vm.Message)
	} else {
		dispatchErr = target.OnVote(ctx, vm.Message)
	}

	switch {
	case dispatchErr == nil:
		c.countVote(vm.Message.Message.Type)
		if idx, ok := c.voters.IndexOf(vm.Message.ID); ok {
			c.session.RecordVote(idx)
		}
		return c.checkCompletable(ctx, target)
	case errors.Is(dispatchErr, round.ErrNotPrimary), errors.Is(dispatchErr, round.ErrUnknownVoter):
		c.recordMisbehavior(vm.Message.ID)
		if d := grandpa.GetDispatch(ctx); d != nil {
			d.RecordFault()
		}
		return nil
	default:
		// Transient: the Chain collaborator doesn't know the voted-for
		// block yet. Defer and retry once it shows up (spec §7).
		c.deferVote(vm)
		if d := grandpa.GetDispatch(ctx); d != nil {
			d.RecordMissing(vm.Message.Message.Target.Hash)
		}
		return nil
	}
}

func (c *Coordinator) countVote(t grandpa.VoteType) {
	if c.metrics == nil {
		return
	}
	switch t {
	case grandpa.Prevote:
		c.metrics.PrevotesTotal.Inc()
	case grandpa.Precommit:
		c.metrics.PrecommitsTotal.Inc()
	}
}

func (c *Coordinator) recordMisbehavior(id grandpa.VoterID) {
	c.misbehaving[id]++
}

// Misbehaving returns the number of bad messages attributed to id so
// far. The dispute subsystem, not this package, decides what to do
// with it.
func (c *Coordinator) Misbehaving(id grandpa.VoterID) int { return c.misbehaving[id] }

// deferVote buffers vm keyed by its target block's hash, bounded by
// PendingVoteLimit; the oldest deferred vote is dropped on overflow.
func (c *Coordinator) deferVote(vm network.VoteMessage) {
	hash := vm.Message.Message.Target.Hash
	c.pending[hash] = append(c.pending[hash], vm)
	c.pendingOrder = append(c.pendingOrder, hash)

	if len(c.pendingOrder) <= c.params.PendingVoteLimit {
		return
	}
	oldest := c.pendingOrder[0]
	c.pendingOrder = c.pendingOrder[1:]
	if queued := c.pending[oldest]; len(queued) > 0 {
		c.pending[oldest] = queued[1:]
		if len(c.pending[oldest]) == 0 {
			delete(c.pending, oldest)
		}
	}
}

// OnBlockArrived retries every vote deferred against hash, called once
// the Chain collaborator notifies that the previously-missing block is
// now known.
func (c *Coordinator) OnBlockArrived(ctx context.Context, hash grandpa.BlockHash) error {
	queued := c.pending[hash]
	delete(c.pending, hash)
	kept := c.pendingOrder[:0]
	for _, h := range c.pendingOrder {
		if h != hash {
			kept = append(kept, h)
		}
	}
	c.pendingOrder = kept
	for _, vm := range queued {
		if err := c.Dispatch(ctx, vm); err != nil {
			return err
		}
	}
	return nil
}

// checkCompletable persists and advances past r once it reports
// completable and finalized (spec §4.7.1).
func (c *Coordinator) checkCompletable(ctx context.Context, r *round.Round) error {
	if r != c.current || !r.Completable() {
		return nil
	}
	finalized, ok := r.Finalized()
	if !ok {
		return nil
	}

	if c.metrics != nil {
		c.metrics.FinalizedHeight.Set(float64(finalized.Number))
	}

	state := grandpa.MovableRoundState{RoundNumber: r.Number(), LastFinalizedBlock: finalized}
	if err := c.store.SaveRoundState(state); err != nil {
		// Fatal per spec §7: the caller is expected to halt; the
		// process-level supervisor decides whether to restart. On
		// restart, Start resumes from the last round state that was
		// persisted successfully.
		return fmt.Errorf("coord: persist round state: %w", err)
	}

	if err := c.notifyFinalized(ctx, finalized); err != nil {
		return err
	}

	return c.advance(ctx, finalized)
}

// notifyFinalized fans block out to the registered FinalityObserver set,
// if one was configured. A registered observer's error is only fatal
// to this call when that observer itself was registered with
// dieOnError — FinalityObserverGroup.Notify already enforces that, this
// is just the coordinator's side of wiring it in.
func (c *Coordinator) notifyFinalized(ctx context.Context, block grandpa.BlockInfo) error {
	if c.notifier == nil {
		return nil
	}
	if err := c.notifier.Notify(ctx, block); err != nil {
		return fmt.Errorf("coord: finality observer: %w", err)
	}
	return nil
}

// advance starts round+1 rooted at finalized, enacting any authority
// change whose trigger height has now been reached (spec §4.7.3).
func (c *Coordinator) advance(ctx context.Context, finalized grandpa.BlockInfo) error {
	if pc := c.dueChange(finalized.Number); pc != nil {
		return c.enactChange(ctx, finalized, pc)
	}

	c.session.Tick()
	next := c.newRound(c.current.Number()+1, c.setID, c.voters, finalized)
	c.previous = c.current
	c.current = next
	c.roundCounter++
	return next.Start(ctx)
}

func (c *Coordinator) dueChange(number uint64) *pendingChange {
	if c.pendingForced != nil && number >= c.pendingForced.enactAt {
		pc := c.pendingForced
		c.pendingForced = nil
		return pc
	}
	if c.pendingScheduled != nil && number >= c.pendingScheduled.enactAt {
		pc := c.pendingScheduled
		c.pendingScheduled = nil
		return pc
	}
	return nil
}

func (c *Coordinator) enactChange(ctx context.Context, finalized grandpa.BlockInfo, pc *pendingChange) error {
	newVoters, err := voter.New(c.setID+1, pc.entries)
	if err != nil {
		return fmt.Errorf("coord: enact authority change: %w", err)
	}

	entries := make([]storage.AuthorityEntry, len(pc.entries))
	for i, e := range pc.entries {
		entries[i] = storage.AuthorityEntry{ID: e.ID, Weight: e.Weight}
	}
	if err := c.store.SaveAuthoritySet(newVoters.SetID(), entries); err != nil {
		return fmt.Errorf("coord: persist authority set: %w", err)
	}

	c.setID = newVoters.SetID()
	c.voters = newVoters
	c.voterCache[c.setID] = newVoters
	// Voter indices are renumbered for the new set, so last set's
	// recency ticks no longer mean anything.
	c.session = session.New(c.params.SessionWindowSize)

	// Round numbers are per-set: enacting a change resets to round 0
	// rooted at the finalization that enacted it.
	next := c.newRound(0, c.setID, c.voters, finalized)
	c.previous = c.current
	c.current = next
	c.roundCounter++
	return next.Start(ctx)
}

// ScheduleChange registers a ScheduledChange included in originating,
// to take effect once finality reaches originating.Number+ch.Delay.
func (c *Coordinator) ScheduleChange(originating grandpa.BlockInfo, ch ScheduledChange) {
	c.pendingScheduled = &pendingChange{enactAt: originating.Number + ch.Delay, entries: ch.NextAuthorities}
}

// ForceChange registers a ForcedChange to take effect at
// ch.Median+ch.Delay regardless of finalization progress.
func (c *Coordinator) ForceChange(ch ForcedChange) {
	c.pendingForced = &pendingChange{enactAt: ch.Median + ch.Delay, entries: ch.NextAuthorities}
}

// Watchdog is called on a 20-second tick (spec §4.7.1). If the round-id
// counter has not advanced since the previous tick, the current
// round's pending phase transition is re-driven, recovering from a
// lost timer wakeup without restarting the process.
func (c *Coordinator) Watchdog(ctx context.Context) error {
	if c.roundCounter == c.lastWatchdogCounter {
		return c.current.Nudge(ctx)
	}
	c.lastWatchdogCounter = c.roundCounter
	return nil
}

// votersForSet resolves the roster effective for setID, consulting the
// in-memory cache, then storage, falling back to false if neither
// holds it.
func (c *Coordinator) votersForSet(setID uint64) (*voter.Set, bool) {
	if setID == c.setID {
		return c.voters, true
	}
	if vs, ok := c.voterCache[setID]; ok {
		return vs, true
	}
	entries, ok, err := c.store.LoadAuthoritySet(setID)
	if err != nil || !ok {
		return nil, false
	}
	voterEntries := make([]voter.Entry, len(entries))
	for i, e := range entries {
		voterEntries[i] = voter.Entry{ID: e.ID, Weight: e.Weight}
	}
	vs, err := voter.New(setID, voterEntries)
	if err != nil {
		return nil, false
	}
	c.voterCache[setID] = vs
	return vs, true
}

// HandleCommit verifies cm (spec §4.7.2: every signature valid under
// the named voter set, every target a descendant of or equal to the
// claimed block, distinct-voter weight — equivocators counted once —
// at least threshold) and, if valid, hands it to the
// VerifiedJustificationQueue.
func (c *Coordinator) HandleCommit(ctx context.Context, cm network.CommitMessage) error {
	if err := c.verifyJustification(ctx, cm); err != nil {
		return nil // bad justification: dropped, no state mutation
	}

	j := justification.Justification{
		SetID:       cm.SetID,
		BlockNumber: cm.Target.Number,
		Target:      cm.Target,
		Precommits:  cm.Precommits,
	}
	return c.justifications.Push(ctx, j, c.applyJustification)
}

func (c *Coordinator) verifyJustification(ctx context.Context, cm network.CommitMessage) error {
	voters, ok := c.votersForSet(cm.SetID)
	if !ok {
		return ErrUnknownVoterSet
	}

	seen := make(map[int]uint64, len(cm.Precommits))
	for _, sm := range cm.Precommits {
		if sm.Message.Type != grandpa.Precommit {
			return ErrMalformedJustification
		}
		if err := gcrypto.Verify(sm, cm.RoundNumber, cm.SetID); err != nil {
			return err
		}
		idx, weight, ok := voters.IndexAndWeight(sm.ID)
		if !ok {
			return round.ErrUnknownVoter
		}
		if sm.Message.Target.Hash != cm.Target.Hash {
			onChain, err := c.chainColl.IsDescendant(ctx, cm.Target.Hash, sm.Message.Target.Hash)
			if err != nil || !onChain {
				return ErrTargetNotDescendant
			}
		}
		seen[idx] = weight
	}

	var total uint64
	for _, w := range seen {
		total += w
	}
	if total < voters.Threshold() {
		return ErrInsufficientWeight
	}
	return nil
}

// applyJustification is the justification.Applier the coordinator's
// queue invokes once a commit is next in order: it persists the
// finalization and advances round chaining past it, exactly as a
// round's own completable finalization would.
func (c *Coordinator) applyJustification(ctx context.Context, j justification.Justification) error {
	state := grandpa.MovableRoundState{RoundNumber: c.current.Number(), LastFinalizedBlock: j.Target, Votes: j.Precommits}
	if err := c.store.SaveRoundState(state); err != nil {
		return fmt.Errorf("coord: persist justification: %w", err)
	}
	if c.metrics != nil {
		c.metrics.FinalizedHeight.Set(float64(j.Target.Number))
	}
	if err := c.notifyFinalized(ctx, j.Target); err != nil {
		return err
	}
	return c.advance(ctx, j.Target)
}

// Current returns the round currently being played.
func (c *Coordinator) Current() *round.Round { return c.current }

// Previous returns the prior round, retained until the next-next round
// starts (spec §9's "previous round kept as a strong handle").
func (c *Coordinator) Previous() *round.Round { return c.previous }

// InactiveVoters returns the members of the current voter set that
// have voted in this set but are absent from every tick still held by
// the rolling session window — the dispute-coordinator's input for
// inactivity reporting (spec §5). A member with no recorded vote in
// this set is not listed.
func (c *Coordinator) InactiveVoters() []grandpa.VoterID {
	idle := c.session.Inactive()
	out := make([]grandpa.VoterID, 0, len(idle))
	for _, idx := range idle {
		out = append(out, c.voters.Nth(idx).ID)
	}
	return out
}
