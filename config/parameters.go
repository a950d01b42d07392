// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the tunable timing and resource-limit knobs a
// grandpa coordinator runs with, plus ready-made presets for the
// deployments this module ships with.
package config

import "time"

// Parameters bounds the round-chaining coordinator's timing and
// resource limits.
type Parameters struct {
	// RoundDuration is the nominal length of a voting round's
	// Start-Proposed-Prevoted-Precommitted phase cycle. Actual rounds
	// can complete earlier (once completable) or run longer (while
	// waiting out equivocation/catch-up timers).
	RoundDuration time.Duration

	// CatchUpTimeout is the timeout for a catch-up response. Validate
	// requires it to be positive; the coordinator in this module sends
	// no catch-up requests and does not read it.
	CatchUpTimeout time.Duration

	// PendingVoteLimit caps the number of vote messages the coordinator
	// buffers, across all rounds, while waiting on a missing block from the Chain
	// collaborator, bounding memory under an adversarial flood.
	PendingVoteLimit int

	// SessionWindowSize is the number of recency "ticks" the rolling
	// session window retains before compressing the oldest tick away
	// (spec §5).
	SessionWindowSize int
}

// Validate reports whether p's fields are within usable bounds.
func (p Parameters) Validate() error {
	switch {
	case p.RoundDuration <= 0:
		return ErrInvalidRoundDuration
	case p.CatchUpTimeout <= 0:
		return ErrInvalidCatchUpTimeout
	case p.PendingVoteLimit <= 0:
		return ErrInvalidPendingVoteLimit
	case p.SessionWindowSize <= 0:
		return ErrInvalidSessionWindowSize
	}
	return nil
}

// Mainnet returns the production preset: long enough rounds to
// tolerate real network latency, generous catch-up patience.
func Mainnet() Parameters {
	return Parameters{
		RoundDuration:     4 * time.Second,
		CatchUpTimeout:    15 * time.Second,
		PendingVoteLimit:  4096,
		SessionWindowSize: 300,
	}
}

// Testnet returns a preset slightly more aggressive than Mainnet, for
// networks that want faster finality at the cost of more retries
// under latency spikes.
func Testnet() Parameters {
	return Parameters{
		RoundDuration:     2 * time.Second,
		CatchUpTimeout:    10 * time.Second,
		PendingVoteLimit:  2048,
		SessionWindowSize: 150,
	}
}

// Local returns a preset tuned for a single-machine devnet: short
// rounds, tight timeouts, small buffers.
func Local() Parameters {
	return Parameters{
		RoundDuration:     500 * time.Millisecond,
		CatchUpTimeout:    2 * time.Second,
		PendingVoteLimit:  256,
		SessionWindowSize: 32,
	}
}
