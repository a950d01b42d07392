// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package grandpa

import (
	"context"

	"github.com/luxfi/ids"
)

// Context is a type alias for standard context - use this for cleaner call sites.
type Context = context.Context

// IDs contains small immutable identity info carried in context.
type IDs struct {
	NetworkID uint32
	ChainID   ids.ID
	NodeID    ids.NodeID
}

// Private typed keys to avoid collisions.
type idsKey struct{}
type dispatchKey struct{}

// WithIDs sets the chain IDs in the context.
func WithIDs(ctx context.Context, v IDs) context.Context {
	return context.WithValue(ctx, idsKey{}, v)
}

// MustIDs panics if IDs are missing. Reserved for programmer-error
// invariants fully under this module's control; never called on a
// path reachable by untrusted network input.
func MustIDs(ctx context.Context) IDs {
	v, ok := ctx.Value(idsKey{}).(IDs)
	if !ok {
		panic("grandpa: IDs missing from context")
	}
	return v
}

// Short accessors for minimal typing at call sites.
func NID(ctx context.Context) uint32      { return MustIDs(ctx).NetworkID }
func CID(ctx context.Context) ids.ID      { return MustIDs(ctx).ChainID }
func Node(ctx context.Context) ids.NodeID { return MustIDs(ctx).NodeID }

// GetChainID returns the ChainID, or ids.Empty if no IDs are attached.
func GetChainID(ctx context.Context) ids.ID {
	if v, ok := ctx.Value(idsKey{}).(IDs); ok {
		return v.ChainID
	}
	return ids.Empty
}

// DispatchContext replaces the source's thread-local GrandpaContext
// (spec §9): it is threaded explicitly through on{Prevote,Precommit,
// Proposal} calls and carries the peer that delivered the message, a
// running count of protocol faults attributed to that peer during
// this dispatch, and the set of block hashes the dispatch discovered
// were missing from the Chain collaborator (appended by the
// coordinator when it defers a vote, spec §7 "Transient"; the
// coordinator itself never reads them back — deferred votes are
// retried through Coordinator.OnBlockArrived).
type DispatchContext struct {
	Peer          ids.NodeID
	FaultCount    int
	MissingBlocks []BlockHash
}

// RecordFault increments the fault counter for the current dispatch.
func (d *DispatchContext) RecordFault() {
	d.FaultCount++
}

// RecordMissing records the target block of a vote the coordinator
// deferred because the dispatch could not complete.
func (d *DispatchContext) RecordMissing(h BlockHash) {
	d.MissingBlocks = append(d.MissingBlocks, h)
}

// WithDispatch attaches a DispatchContext to ctx.
func WithDispatch(ctx context.Context, d *DispatchContext) context.Context {
	return context.WithValue(ctx, dispatchKey{}, d)
}

// GetDispatch retrieves the DispatchContext from ctx, or nil if absent.
func GetDispatch(ctx context.Context) *DispatchContext {
	if d, ok := ctx.Value(dispatchKey{}).(*DispatchContext); ok {
		return d
	}
	return nil
}
