// Copyright (C) 2019-2024, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package grandpa

import "context"

// FinalityObserver is implemented by anything that must react to a
// block becoming final (spec §2: "on completion C7 ... feeds verified
// grandpa justifications to block finalization").
type FinalityObserver interface {
	OnFinalized(ctx context.Context, block BlockInfo) error
}

// FinalityObserverGroup fans a single finalization event out to every
// registered observer. The coordinator calls it synchronously, after
// updating its own persisted state, and waits for it to return before
// starting the next round.
type FinalityObserverGroup interface {
	// Register causes observer to be called for every block this
	// core finalizes. If dieOnError, a non-nil return from observer
	// is treated as fatal (spec §7 "Fatal").
	Register(name string, observer FinalityObserver, dieOnError bool) error

	// Deregister removes a previously registered observer.
	Deregister(name string) error
}

// FinalityNotifier is the narrower capability a FinalityObserverGroup's
// concrete type also satisfies: fanning one finalized block out to
// every registered observer. It is split out from
// FinalityObserverGroup so the round-chaining coordinator can hold
// just this call without also gaining Register/Deregister access.
type FinalityNotifier interface {
	Notify(ctx context.Context, block BlockInfo) error
}
