// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gcrypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/luxfi/grandpa"
)

// InMemorySigner is a Signer backed by an ed25519 private key held in
// process memory. Production nodes are expected to provide their own
// Signer backed by a hardware- or remote-key-store-held key; this
// implementation exists for tests and for single-process deployments
// that accept the weaker key-custody model.
type InMemorySigner struct {
	public  grandpa.VoterID
	private ed25519.PrivateKey
}

// NewInMemorySigner generates a fresh ed25519 keypair.
func NewInMemorySigner() (*InMemorySigner, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	var id grandpa.VoterID
	copy(id[:], pub)
	return &InMemorySigner{public: id, private: priv}, nil
}

// PublicKey implements Signer.
func (s *InMemorySigner) PublicKey() grandpa.VoterID { return s.public }

// Sign implements Signer.
func (s *InMemorySigner) Sign(payload []byte) grandpa.Signature {
	var sig grandpa.Signature
	copy(sig[:], ed25519.Sign(s.private, payload))
	return sig
}
