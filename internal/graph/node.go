package graph

import (
	"maps"
	"slices"
)

// Node is a single vertex of the model graph. The lifecycle fields are shared
// by all variants; kind-specific behaviour lives in the behavior field.
// Nodes are owned by a Model and only mutated through it.
type Node struct {
	name     string
	parents  []Handle // ordered: they are the arguments of the function/distribution
	children handleSet
	behavior behavior

	value  Value
	stored Value
	lnProb float64
	// storedLnProb is the contribution at the time of the first touch.
	storedLnProb float64

	// stale marks a deterministic value that must be recomputed.
	stale bool
	// probDirty marks a cached log-probability that must be recomputed.
	probDirty bool
	// touched is set between a touch and the matching keep/restore.
	touched bool
	// changed is set when the node's own value changed since the last keep.
	changed bool
	clamped bool

	touchedElements map[int]struct{}
}

// Name returns the display name of the node. It may be empty.
func (n *Node) Name() string { return n.name }

// Kind returns the node variant.
func (n *Node) Kind() Kind { return n.behavior.kind() }

// IsConstant reports whether the node is a constant.
func (n *Node) IsConstant() bool { return n.Kind() == Constant }

// IsStochastic reports whether the node is stochastic.
func (n *Node) IsStochastic() bool { return n.Kind() == Stochastic }

// IsClamped reports whether the node is clamped to observed data.
func (n *Node) IsClamped() bool { return n.clamped }

// IsTouched reports whether the node is between a touch and a keep/restore.
func (n *Node) IsTouched() bool { return n.touched }

// Distribution returns the bound distribution of a stochastic node, or nil.
func (n *Node) Distribution() Distribution {
	if s, ok := n.behavior.(stochastic); ok {
		return s.dist
	}
	return nil
}

// TouchedElements returns the sorted indices of the vector elements changed
// since the last keep.
func (n *Node) TouchedElements() []int {
	return slices.Sorted(maps.Keys(n.touchedElements))
}

// copyNode returns a deep copy of the node state without any topology.
func (n *Node) copyNode() *Node {
	c := &Node{
		name:         n.name,
		behavior:     n.behavior,
		value:        n.value.Clone(),
		stored:       n.stored.Clone(),
		lnProb:       n.lnProb,
		storedLnProb: n.storedLnProb,
		stale:        n.stale,
		probDirty:    n.probDirty,
		touched:      n.touched,
		changed:      n.changed,
		clamped:      n.clamped,
	}
	if len(n.touchedElements) > 0 {
		c.touchedElements = maps.Clone(n.touchedElements)
	}
	return c
}
