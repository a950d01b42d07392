// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package grandpa

import (
	"fmt"

	"github.com/luxfi/ids"
)

// BlockHash identifies a block by its 32-byte content hash.
type BlockHash = ids.ID

// VoterID identifies a GRANDPA authority by its 32-byte public key.
type VoterID [32]byte

// String implements fmt.Stringer.
func (v VoterID) String() string {
	return fmt.Sprintf("%x", v[:4])
}

// BlockInfo identifies a block by number and hash. Equality is on both
// fields; ordering, when needed, is lexicographic on (Number, Hash).
type BlockInfo struct {
	Number uint64
	Hash   BlockHash
}

// Less reports whether b is ordered before other.
func (b BlockInfo) Less(other BlockInfo) bool {
	if b.Number != other.Number {
		return b.Number < other.Number
	}
	return b.Hash.Compare(other.Hash) < 0
}

func (b BlockInfo) String() string {
	return fmt.Sprintf("(#%d %s)", b.Number, b.Hash)
}

// VoteType is the tagged-union discriminator for a Vote. The numeric
// values are normative: they are the first byte of every signed
// payload (spec §6) and MUST NOT change.
type VoteType uint8

const (
	Prevote VoteType = iota
	Precommit
	PrimaryPropose
)

func (t VoteType) String() string {
	switch t {
	case Prevote:
		return "prevote"
	case Precommit:
		return "precommit"
	case PrimaryPropose:
		return "primary-propose"
	default:
		return fmt.Sprintf("VoteType(%d)", uint8(t))
	}
}

// Vote is a tagged union of the three GRANDPA message variants, all
// carrying the same BlockInfo payload. The variant is its own field
// beside the target rather than part of it, matching the wire layout
// of spec §6 where the tag is a sibling field of the message.
type Vote struct {
	Type    VoteType
	Target  BlockInfo
}

func NewVote(t VoteType, target BlockInfo) Vote {
	return Vote{Type: t, Target: target}
}

// Signature is a 64-byte ed25519 signature.
type Signature [64]byte

// SignedMessage is a Vote together with its signature and signer.
type SignedMessage struct {
	Message   Vote
	Signature Signature
	ID        VoterID
}

// EquivocationPair is a pair of signed messages from the same voter,
// of the same variant, that disagree on their target. Construction of
// a pair where either carries a different tag or signer is a caller
// bug and must never happen.
type EquivocationPair struct {
	First  SignedMessage
	Second SignedMessage
}

// Valid reports whether p has the shape required of an equivocation:
// same variant, same voter, different targets.
func (p EquivocationPair) Valid() bool {
	return p.First.Message.Type == p.Second.Message.Type &&
		p.First.ID == p.Second.ID &&
		p.First.Message.Target != p.Second.Message.Target
}

// MovableRoundState is the serializable checkpoint persisted between
// runs of the coordinator (spec §3, §6 kSetStateKey).
type MovableRoundState struct {
	RoundNumber        uint64
	LastFinalizedBlock BlockInfo
	Votes              []SignedMessage
	Finalized          *BlockInfo
}
