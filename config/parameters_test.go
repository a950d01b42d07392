// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresetsValidate(t *testing.T) {
	for _, p := range []Parameters{Mainnet(), Testnet(), Local()} {
		require.NoError(t, p.Validate())
	}
}

func TestValidateRejectsZero(t *testing.T) {
	require.ErrorIs(t, Parameters{}.Validate(), ErrInvalidRoundDuration)

	p := Mainnet()
	p.CatchUpTimeout = 0
	require.ErrorIs(t, p.Validate(), ErrInvalidCatchUpTimeout)

	p = Mainnet()
	p.PendingVoteLimit = 0
	require.ErrorIs(t, p.Validate(), ErrInvalidPendingVoteLimit)

	p = Mainnet()
	p.SessionWindowSize = 0
	require.ErrorIs(t, p.Validate(), ErrInvalidSessionWindowSize)
}
