// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package grandpa

import "errors"

// Sentinel errors shared across the grandpa core. Package-local errors
// (votegraph, round, justification, ...) live beside their package.
var (
	// ErrInvalidEquivocation is returned when an EquivocationPair does
	// not satisfy its shape invariant (same voter and variant,
	// different targets).
	ErrInvalidEquivocation = errors.New("grandpa: invalid equivocation pair")

	// ErrSetIDMismatch is returned when a message's voter-set id does
	// not match the locally active set.
	ErrSetIDMismatch = errors.New("grandpa: voter set id mismatch")

	// ErrRoundMismatch is returned when a message's round number is
	// outside the window the coordinator currently routes (spec §4.7.2).
	ErrRoundMismatch = errors.New("grandpa: round number mismatch")
)
