// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package votegraph tracks, for one voting round, how prevote or
// precommit weight accumulates along the chain between a fixed base
// block and every block anyone has voted for. It answers the two
// questions a round needs every time a vote arrives: "what is the
// GHOST block for this vote type at this threshold" and "is block A
// an ancestor of block B".
package votegraph

import (
	"errors"
	"fmt"

	"github.com/luxfi/grandpa"
	"github.com/luxfi/grandpa/utils/set"
	"github.com/luxfi/grandpa/vote"
)

var (
	// ErrBelowBase is returned when a vote or query targets a block at
	// or below the current base, which the graph cannot place in the
	// ancestry it tracks.
	ErrBelowBase = errors.New("votegraph: target at or below base")
	// ErrUnknownAncestor is returned by AdjustBase when the requested
	// new base is not a block the graph has ever seen.
	ErrUnknownAncestor = errors.New("votegraph: new base is not a known descendant")
)

// node is one block the graph has an entry for: either because it was
// voted for directly, or because it lies on the ancestry path between
// base and a voted-for block.
type node struct {
	info     grandpa.BlockInfo
	hasParent bool
	parent   grandpa.BlockHash
	children []grandpa.BlockHash
	weight   vote.Weight
}

// Graph is the vote-weight accumulation structure for a single voting
// round, rooted at a fixed base block (the round's last finalized
// block, or the block a catch-up response is rooted at).
type Graph struct {
	base         grandpa.BlockInfo
	baseWeight   vote.Weight
	baseChildren []grandpa.BlockHash
	nodes        map[grandpa.BlockHash]*node
	heads        set.Set[grandpa.BlockHash]
	weightOf     func(voterIndex int) uint64
}

// New returns a Graph rooted at base. weightOf resolves a voter index
// to its voting weight, used when merging cumulative weight up the
// ancestry chain.
func New(base grandpa.BlockInfo, weightOf func(voterIndex int) uint64) *Graph {
	return &Graph{
		base:       base,
		baseWeight: vote.NewWeight(),
		nodes:      make(map[grandpa.BlockHash]*node),
		heads:      set.NewSet[grandpa.BlockHash](0),
		weightOf:   weightOf,
	}
}

// Base returns the block the graph is currently rooted at.
func (g *Graph) Base() grandpa.BlockInfo { return g.base }

// ensure returns the node for info, creating it (and linking it to
// parentHash, which is the zero hash when the parent is base) if it
// does not already exist.
func (g *Graph) ensure(info grandpa.BlockInfo, parentHash grandpa.BlockHash, hasParent bool) *node {
	n, ok := g.nodes[info.Hash]
	if ok {
		return n
	}
	n = &node{info: info, parent: parentHash, hasParent: hasParent, weight: vote.NewWeight()}
	g.nodes[info.Hash] = n
	g.heads.Add(info.Hash)
	if hasParent {
		if parent, ok := g.nodes[parentHash]; ok {
			parent.children = append(parent.children, info.Hash)
			g.heads.Remove(parentHash)
		}
	} else {
		// No tracked parent: info's parent is base itself.
		g.baseChildren = append(g.baseChildren, info.Hash)
	}
	return n
}

// Insert records that voterIndex cast a vote of voteType for target.
// ancestry is the chain of blocks strictly between base and target,
// ordered nearest-base-first (ancestry[0] is the block immediately
// after base, the last element is target's immediate parent); it is
// typically obtained from the Chain collaborator's ancestor search.
// Insert is idempotent:
// pushing the same vote twice leaves the graph unchanged the second
// time (VoteTracker, not Graph, is responsible for rejecting or
// flagging the duplicate before it reaches here).
func (g *Graph) Insert(target grandpa.BlockInfo, ancestry []grandpa.BlockInfo, voterIndex int, weight uint64, voteType grandpa.VoteType) error {
	if target.Hash == g.base.Hash {
		// Spec §4.4.1 step 2: a vote for base itself just ORs into
		// base's own tracked weight, no ancestry chain to build.
		switch voteType {
		case grandpa.Prevote:
			g.baseWeight.SetPrevote(voterIndex, weight)
		case grandpa.Precommit:
			g.baseWeight.SetPrecommit(voterIndex, weight)
		default:
			g.baseWeight.SetPrevote(voterIndex, weight)
		}
		return nil
	}
	if target.Number <= g.base.Number {
		return fmt.Errorf("%w: target=%s base=%s", ErrBelowBase, target, g.base)
	}

	// Build parent links from base outward to target, creating any
	// missing intermediate entries (this is what lets a later vote for
	// an uncle branch reuse the shared prefix already recorded).
	// ancestry is already ordered nearest-base-first, so appending
	// target walks root to leaf with no reversal needed.
	chain := append(append([]grandpa.BlockInfo{}, ancestry...), target)

	var parentHash grandpa.BlockHash
	hasParent := false
	for _, info := range chain {
		n := g.ensure(info, parentHash, hasParent)
		_ = n
		parentHash = info.Hash
		hasParent = true
	}

	targetNode := g.nodes[target.Hash]
	switch voteType {
	case grandpa.Prevote:
		targetNode.weight.SetPrevote(voterIndex, weight)
	case grandpa.Precommit:
		targetNode.weight.SetPrecommit(voterIndex, weight)
	default:
		targetNode.weight.SetPrevote(voterIndex, weight)
	}

	g.propagate(target.Hash)
	return nil
}

// propagate re-merges hash's weight into every ancestor back to base,
// so each ancestor's cumulative Weight reflects every descendant vote
// without double-counting a voter who appears in more than one
// descendant (Weight.Merge is OR-based, hence idempotent).
func (g *Graph) propagate(hash grandpa.BlockHash) {
	n, ok := g.nodes[hash]
	if !ok || !n.hasParent {
		return
	}
	parent, ok := g.nodes[n.parent]
	if !ok {
		return
	}
	parent.weight.Merge(n.weight, g.weightOf)
	g.propagate(n.parent)
}

// cumulative returns the full accumulated weight at hash: the node's
// own weight merged with every descendant's weight. Because propagate
// already folds child weight upward at insert time, the node's stored
// weight field already IS the cumulative weight.
func (g *Graph) cumulative(hash grandpa.BlockHash) (vote.Weight, bool) {
	n, ok := g.nodes[hash]
	if !ok {
		return vote.Weight{}, false
	}
	return n.weight, true
}

// weightFor extracts prevote or precommit weight per voteType.
func weightFor(w vote.Weight, voteType grandpa.VoteType) uint64 {
	if voteType == grandpa.Precommit {
		return w.Precommit()
	}
	return w.Prevote()
}

// FindGhost returns the GHOST block for voteType at threshold: the
// furthest descendant of current (or of base, if current is nil) that
// still carries at least threshold cumulative weight. It returns false
// if current is non-nil, differs from base, and itself does not meet
// the threshold. Base is never checked, so a nil current always
// returns true, with base itself as the result if no child qualifies.
func (g *Graph) FindGhost(current *grandpa.BlockInfo, threshold uint64, voteType grandpa.VoteType) (grandpa.BlockInfo, bool) {
	start := g.base
	if current != nil {
		start = *current
	}

	startNode, ok := g.nodes[start.Hash]
	var startWeight vote.Weight
	if ok {
		startWeight = startNode.weight
	}
	if start.Hash != g.base.Hash && weightFor(startWeight, voteType) < threshold {
		return grandpa.BlockInfo{}, false
	}

	best := start
	for {
		var children []grandpa.BlockHash
		if best.Hash == g.base.Hash {
			children = g.baseChildren
		} else if n, ok := g.nodes[best.Hash]; ok {
			children = n.children
		}
		if len(children) == 0 {
			break
		}

		var bestChild *grandpa.BlockInfo
		var bestChildWeight uint64
		for _, childHash := range children {
			child, ok := g.nodes[childHash]
			if !ok {
				continue
			}
			w := weightFor(child.weight, voteType)
			if w < threshold {
				continue
			}
			if bestChild == nil || w > bestChildWeight ||
				(w == bestChildWeight && child.info.Hash.Compare(bestChild.Hash) < 0) {
				info := child.info
				bestChild = &info
				bestChildWeight = w
			}
		}
		if bestChild == nil {
			break
		}
		best = *bestChild
	}
	return best, true
}

// FindAncestor reports whether ancestor is an ancestor of (or equal
// to) descendant, walking parent pointers. Both must be known to the
// graph (or equal to base).
func (g *Graph) FindAncestor(ancestor, descendant grandpa.BlockHash) bool {
	if ancestor == descendant {
		return true
	}
	if ancestor == g.base.Hash {
		// Base is an ancestor of everything the graph tracks.
		_, ok := g.nodes[descendant]
		return ok || descendant == g.base.Hash
	}

	hash := descendant
	for {
		n, ok := g.nodes[hash]
		if !ok {
			return false
		}
		if !n.hasParent {
			return false
		}
		if n.parent == ancestor {
			return true
		}
		hash = n.parent
	}
}

// Ancestry returns the chain of blocks strictly between base and
// hash, ordered nearest-base-first — the same shape Insert expects
// for its ancestry argument, useful for catch-up response assembly.
func (g *Graph) Ancestry(hash grandpa.BlockHash) []grandpa.BlockInfo {
	var out []grandpa.BlockInfo
	n, ok := g.nodes[hash]
	if !ok {
		return out
	}
	for n.hasParent {
		parent, ok := g.nodes[n.parent]
		if !ok {
			break
		}
		out = append(out, parent.info)
		n = parent
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// AdjustBase re-roots the graph at newBase, which must already be a
// known descendant of the current base. Every node that is not a
// descendant of newBase (the old base included) is discarded: once
// finalization moves forward those blocks can never be voted for
// again in a later round rooted here.
func (g *Graph) AdjustBase(newBase grandpa.BlockInfo) error {
	if newBase.Hash == g.base.Hash {
		return nil
	}
	if _, ok := g.nodes[newBase.Hash]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAncestor, newBase)
	}

	keep := make(map[grandpa.BlockHash]*node)
	var collect func(hash grandpa.BlockHash)
	collect = func(hash grandpa.BlockHash) {
		n, ok := g.nodes[hash]
		if !ok {
			return
		}
		keep[hash] = n
		for _, c := range n.children {
			collect(c)
		}
	}
	newBaseNode := g.nodes[newBase.Hash]
	for _, c := range newBaseNode.children {
		collect(c)
	}

	for hash, n := range keep {
		if n.hasParent && n.parent == newBase.Hash {
			n.hasParent = false
			n.parent = grandpa.BlockHash{}
		}
		_ = hash
	}

	g.baseChildren = append([]grandpa.BlockHash{}, newBaseNode.children...)
	g.baseWeight = newBaseNode.weight
	g.nodes = keep
	g.base = newBase
	g.heads = set.NewSet[grandpa.BlockHash](0)
	for hash, n := range g.nodes {
		if len(n.children) == 0 {
			g.heads.Add(hash)
		}
	}
	return nil
}

// Heads returns the current leaf set of the graph.
func (g *Graph) Heads() []grandpa.BlockHash { return g.heads.List() }

// WeightAt returns the accumulated Weight at hash, or false if hash is
// not (yet) a tracked node. WeightAt(Base().Hash) returns whatever
// weight has been OR'd directly into base by Insert (base is tracked
// separately from the rest of the graph, but does carry its own vote
// weight once something votes for it directly).
func (g *Graph) WeightAt(hash grandpa.BlockHash) (vote.Weight, bool) {
	if hash == g.base.Hash {
		return g.baseWeight, true
	}
	n, ok := g.nodes[hash]
	if !ok {
		return vote.Weight{}, false
	}
	return n.weight, true
}

// Parent returns the BlockInfo of hash's parent, or false if hash is
// unknown to the graph or its parent is the base itself (the base is
// tracked separately, not as a node).
func (g *Graph) Parent(hash grandpa.BlockHash) (grandpa.BlockInfo, bool) {
	n, ok := g.nodes[hash]
	if !ok || !n.hasParent {
		return grandpa.BlockInfo{}, false
	}
	parent, ok := g.nodes[n.parent]
	if !ok {
		return grandpa.BlockInfo{}, false
	}
	return parent.info, true
}

// Children returns the immediate children of hash known to the graph.
func (g *Graph) Children(hash grandpa.BlockHash) []grandpa.BlockHash {
	if hash == g.base.Hash {
		return append([]grandpa.BlockHash{}, g.baseChildren...)
	}
	n, ok := g.nodes[hash]
	if !ok {
		return nil
	}
	return append([]grandpa.BlockHash{}, n.children...)
}
