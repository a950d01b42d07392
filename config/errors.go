// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "errors"

var (
	ErrInvalidRoundDuration     = errors.New("config: round duration must be > 0")
	ErrInvalidCatchUpTimeout    = errors.New("config: catch-up timeout must be > 0")
	ErrInvalidPendingVoteLimit  = errors.New("config: pending vote limit must be > 0")
	ErrInvalidSessionWindowSize = errors.New("config: session window size must be > 0")
)
