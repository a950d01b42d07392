// Copyright (C) 2019-2024, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package grandpa

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/luxfi/log"
)

type finalityObserverGroup struct {
	lock      sync.RWMutex
	log       log.Logger
	observers map[string]FinalityObserver
	fatal     map[string]bool
}

// NewFinalityObserverGroup creates a FinalityObserverGroup.
func NewFinalityObserverGroup(log log.Logger) FinalityObserverGroup {
	return &finalityObserverGroup{
		log:       log,
		observers: make(map[string]FinalityObserver),
		fatal:     make(map[string]bool),
	}
}

func (g *finalityObserverGroup) Register(name string, observer FinalityObserver, dieOnError bool) error {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.observers[name] = observer
	g.fatal[name] = dieOnError
	return nil
}

func (g *finalityObserverGroup) Deregister(name string) error {
	g.lock.Lock()
	defer g.lock.Unlock()

	delete(g.observers, name)
	delete(g.fatal, name)
	return nil
}

// Notify calls every registered observer with the newly finalized
// block. It is not part of the FinalityObserverGroup interface: only
// the coordinator that owns this group drives notification.
func (g *finalityObserverGroup) Notify(ctx context.Context, block BlockInfo) error {
	g.lock.RLock()
	observers := make(map[string]FinalityObserver, len(g.observers))
	for name, o := range g.observers {
		observers[name] = o
	}
	fatal := make(map[string]bool, len(g.fatal))
	for name, f := range g.fatal {
		fatal[name] = f
	}
	g.lock.RUnlock()

	for name, observer := range observers {
		if err := observer.OnFinalized(ctx, block); err != nil {
			g.log.Error("finality observer failed",
				zap.String("observer", name),
				zap.Stringer("block", block.Hash),
				zap.Uint64("number", block.Number),
				zap.Error(err),
			)
			if fatal[name] {
				return err
			}
		}
	}
	return nil
}
