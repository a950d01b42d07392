// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain declares the collaborator interfaces grandpa consumes
// to learn about block ancestry. Nothing in this package stores a
// block tree itself — the
// host node's block-tree/database implementation is expected to
// satisfy Chain.
package chain

import (
	"context"
	"errors"

	"github.com/luxfi/grandpa"
)

// ErrUnknownBlock is returned by Chain methods when asked about a
// hash the collaborator has never seen.
var ErrUnknownBlock = errors.New("chain: unknown block")

// Chain is the block-tree view grandpa needs: ancestor search for
// vote-graph insertion, leaf enumeration for primary-proposer
// fallback, and the last finalized block to root a fresh round at.
type Chain interface {
	// BlockInfo resolves a hash to its number. Returns ErrUnknownBlock
	// if the hash is not (yet) known.
	BlockInfo(ctx context.Context, hash grandpa.BlockHash) (grandpa.BlockInfo, error)

	// Ancestry returns the chain of blocks strictly between base and
	// target, nearest-base-first (votegraph.Graph.Insert's expected
	// shape). Returns an error if target is not a descendant of base.
	Ancestry(ctx context.Context, base, target grandpa.BlockInfo) ([]grandpa.BlockInfo, error)

	// IsDescendant reports whether descendant is a descendant of (or
	// equal to) ancestor.
	IsDescendant(ctx context.Context, ancestor, descendant grandpa.BlockHash) (bool, error)

	// BestChainContaining returns the best (highest) known block that
	// has base as an ancestor — used to pick the primary proposer's
	// proposal and this node's own prevote target.
	BestChainContaining(ctx context.Context, base grandpa.BlockInfo) (grandpa.BlockInfo, error)

	// Leaves returns every leaf block currently known to the chain.
	Leaves(ctx context.Context) ([]grandpa.BlockInfo, error)

	// LastFinalized returns the most recent block grandpa has
	// finalized according to the host chain's own bookkeeping. The
	// coordinator does not call it: Start roots its first round at the
	// persisted state or at the configured genesis.
	LastFinalized(ctx context.Context) (grandpa.BlockInfo, error)
}
