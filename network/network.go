// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package network declares the wire-level message shapes a grandpa
// coordinator sends and receives, and the Transmitter collaborator
// used to actually put bytes on the wire. Encoding/decoding those
// bytes is left to the host node's own wire codec; this package only
// fixes the logical shape of each message.
package network

import (
	"context"

	"github.com/luxfi/ids"

	"github.com/luxfi/grandpa"
)

// VoteMessage is a single round-scoped signed vote, gossiped to peers
// as it is cast.
type VoteMessage struct {
	RoundNumber uint64
	SetID       uint64
	Message     grandpa.SignedMessage
}

// CommitMessage announces a block finalized in RoundNumber, carrying
// the precommits that proved it (the justification).
type CommitMessage struct {
	RoundNumber uint64
	SetID       uint64
	Target      grandpa.BlockInfo
	Precommits  []grandpa.SignedMessage
}

// CatchUpRequest asks a peer for the state of RoundNumber, sent when
// this node notices it has fallen behind.
type CatchUpRequest struct {
	RoundNumber uint64
	SetID       uint64
}

// CatchUpResponse answers a CatchUpRequest with enough of the round's
// vote graph to let the requester reconstruct prevote-GHOST and the
// precommit supermajority without replaying every individual vote.
type CatchUpResponse struct {
	RoundNumber        uint64
	SetID              uint64
	Prevotes           []grandpa.SignedMessage
	Precommits         []grandpa.SignedMessage
	LastFinalizedBlock grandpa.BlockInfo
}

// Transmitter is the outbound half of the network collaborator:
// everything grandpa needs to push onto the wire. It never blocks
// waiting for acknowledgement — gossip is fire-and-forget, reputation
// consequences are handled out of band by the host node's peer
// manager.
type Transmitter interface {
	GossipVote(ctx context.Context, msg VoteMessage) error
	GossipCommit(ctx context.Context, msg CommitMessage) error
	SendCatchUpRequest(ctx context.Context, peer ids.NodeID, req CatchUpRequest) error
	SendCatchUpResponse(ctx context.Context, peer ids.NodeID, resp CatchUpResponse) error
}
