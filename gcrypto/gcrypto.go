// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gcrypto signs and verifies GRANDPA vote messages over the
// exact canonical payload the wire format requires: a leading variant
// tag byte, the vote itself, the round number, and the voter-set id —
// all of it, never just the vote, so a signature from round 4 can
// never be replayed into round 5 and a prevote signature can never be
// replayed as a precommit.
package gcrypto

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/grandpa"
)

// ErrVerifyFailed is returned by Verify when the signature does not
// match the claimed signer for the given payload.
var ErrVerifyFailed = errors.New("gcrypto: signature verification failed")

// Signer produces ed25519 signatures. A production node backs this
// with an in-memory or HSM-held key; tests back it with an ephemeral
// keypair.
type Signer interface {
	PublicKey() grandpa.VoterID
	Sign(payload []byte) grandpa.Signature
}

// Payload returns the exact byte sequence that is signed for a vote of
// voteType, targeting target, at roundNumber within voter set setID.
// The layout is fixed: 1-byte tag, 32-byte block hash, 8-byte
// big-endian block number, 8-byte big-endian round number, 8-byte
// big-endian voter-set id. Every field width and order here is
// normative; changing it breaks every previously issued signature.
func Payload(voteType grandpa.VoteType, target grandpa.BlockInfo, roundNumber, setID uint64) []byte {
	buf := make([]byte, 1+32+8+8+8)
	buf[0] = byte(voteType)
	copy(buf[1:33], target.Hash[:])
	binary.BigEndian.PutUint64(buf[33:41], target.Number)
	binary.BigEndian.PutUint64(buf[41:49], roundNumber)
	binary.BigEndian.PutUint64(buf[49:57], setID)
	return buf
}

// Sign signs vote as cast by signer at roundNumber in voter set setID,
// returning the fully assembled SignedMessage.
func Sign(signer Signer, v grandpa.Vote, roundNumber, setID uint64) grandpa.SignedMessage {
	payload := Payload(v.Type, v.Target, roundNumber, setID)
	return grandpa.SignedMessage{
		Message:   v,
		Signature: signer.Sign(payload),
		ID:        signer.PublicKey(),
	}
}

// Verify checks that msg.Signature is a valid ed25519 signature by
// msg.ID over the canonical payload for msg.Message at roundNumber in
// voter set setID.
func Verify(msg grandpa.SignedMessage, roundNumber, setID uint64) error {
	payload := Payload(msg.Message.Type, msg.Message.Target, roundNumber, setID)
	if !ed25519.Verify(ed25519.PublicKey(msg.ID[:]), payload, msg.Signature[:]) {
		return fmt.Errorf("%w: voter %s round %d", ErrVerifyFailed, msg.ID, roundNumber)
	}
	return nil
}
