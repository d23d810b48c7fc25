package graph

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// Touch marks a node as about to change. On the first touch since the last
// keep/restore the node snapshots its value and log-probability, computing
// them first if they are out of date. Deterministic children are touched in
// turn; stochastic children only mark their density dirty.
func (m *Model) Touch(h Handle) error {
	if _, err := m.lookupNode(h); err != nil {
		return err
	}
	return m.touch(h, true)
}

func (m *Model) touch(h Handle, self bool) error {
	n := m.nodes[h]
	if !n.touched {
		if err := m.refresh(h); err != nil {
			return err
		}
		n.stored = n.value.Clone()
		n.storedLnProb = n.lnProb
		n.touched = true
	}
	if !self {
		if n.IsStochastic() {
			n.probDirty = true
		}
		return nil
	}

	// Still stale means nothing downstream was refreshed since the previous
	// touch, so the region is already invalidated.
	if n.Kind() == Deterministic && n.changed && n.stale {
		return nil
	}
	// Children snapshot against the value this node still holds, so it is
	// invalidated only after they have been notified.
	for _, c := range n.children {
		if err := m.touchAsChild(c); err != nil {
			return err
		}
	}
	switch n.Kind() {
	case Deterministic:
		n.stale = true
	case Stochastic:
		n.probDirty = true
	}
	n.changed = true
	return nil
}

// touchAsChild notifies c that one of its parents changed.
func (m *Model) touchAsChild(c Handle) error {
	return m.touch(c, m.nodes[c].Kind() == Deterministic)
}

// Keep commits the current state of a touched node and of every touched node
// below it. Untouched nodes end the walk, so each node is committed once.
func (m *Model) Keep(h Handle) error {
	if _, err := m.lookupNode(h); err != nil {
		return err
	}
	m.keep(h)
	return nil
}

func (m *Model) keep(h Handle) {
	n := m.nodes[h]
	if !n.touched {
		return
	}
	n.stored = nil
	n.storedLnProb = 0
	n.touched = false
	n.changed = false
	n.touchedElements = nil
	for _, c := range n.children {
		m.keep(c)
	}
}

// Restore reinstates the state a touched node had before its first touch, and
// does the same for every touched node below it.
func (m *Model) Restore(h Handle) error {
	if _, err := m.lookupNode(h); err != nil {
		return err
	}
	m.restore(h)
	return nil
}

func (m *Model) restore(h Handle) {
	n := m.nodes[h]
	if !n.touched {
		return
	}
	n.value = n.stored
	n.lnProb = n.storedLnProb
	n.stored = nil
	n.storedLnProb = 0
	n.stale = false
	n.probDirty = false
	n.touched = false
	n.changed = false
	n.touchedElements = nil
	for _, c := range n.children {
		m.restore(c)
	}
}

// TouchAll touches every node of the model.
func (m *Model) TouchAll() error {
	for _, h := range m.TopologicalOrder() {
		if err := m.touch(h, true); err != nil {
			return fmt.Errorf("touching %q: %w", m.nodes[h].name, err)
		}
	}
	return nil
}

// KeepAll commits every touched node.
func (m *Model) KeepAll() {
	for _, h := range m.Handles() {
		m.keep(h)
	}
}

// RestoreAll reverts every touched node.
func (m *Model) RestoreAll() {
	for _, h := range m.Handles() {
		m.restore(h)
	}
}

// refresh brings the cached value and log-probability of h up to date.
func (m *Model) refresh(h Handle) error {
	n := m.nodes[h]
	if !n.stale && !n.probDirty {
		return nil
	}
	args, err := m.args(h)
	if err != nil {
		return err
	}
	if n.stale {
		v, err := n.behavior.refresh(args)
		if err != nil {
			return fmt.Errorf("node %q: %w", n.name, err)
		}
		n.value = v
		n.stale = false
	}
	if n.probDirty {
		n.lnProb = n.behavior.density(n.value, args)
		n.probDirty = false
	}
	return nil
}

// args returns the current parent values of h in argument order. The slices
// are shared with the parents and must not be modified.
func (m *Model) args(h Handle) ([]Value, error) {
	parents := m.nodes[h].parents
	args := make([]Value, len(parents))
	for i, p := range parents {
		if err := m.refresh(p); err != nil {
			return nil, err
		}
		args[i] = m.nodes[p].value
	}
	return args, nil
}

// storedArgs returns the parent values as they were before their first touch.
func (m *Model) storedArgs(h Handle) []Value {
	parents := m.nodes[h].parents
	args := make([]Value, len(parents))
	for i, p := range parents {
		pn := m.nodes[p]
		if pn.touched {
			args[i] = pn.stored
		} else {
			args[i] = pn.value
		}
	}
	return args
}

// Value returns a copy of the current value of h, recomputing it if needed.
func (m *Model) Value(h Handle) (Value, error) {
	n, err := m.lookupNode(h)
	if err != nil {
		return nil, err
	}
	if err := m.refresh(h); err != nil {
		return nil, err
	}
	return n.value.Clone(), nil
}

// LnProbability returns the log-density of the current value of h given its
// parents. It is 0 for constant and deterministic nodes.
func (m *Model) LnProbability(h Handle) (float64, error) {
	n, err := m.lookupNode(h)
	if err != nil {
		return 0, err
	}
	if err := m.refresh(h); err != nil {
		return 0, err
	}
	return n.lnProb, nil
}

// LnProbabilityRatio returns the change of the log-probability of h since its
// first touch. Untouched and non-stochastic nodes return 0.
func (m *Model) LnProbabilityRatio(h Handle) (float64, error) {
	n, err := m.lookupNode(h)
	if err != nil {
		return 0, err
	}
	if !n.touched || !n.IsStochastic() {
		return 0, nil
	}

	parentChanged := false
	for _, p := range n.parents {
		if pn := m.nodes[p]; pn.touched && pn.changed {
			parentChanged = true
			break
		}
	}

	switch {
	case !n.changed && !parentChanged:
		return 0, nil
	case !n.changed && parentChanged:
		if pr, ok := n.Distribution().(ParentRatioer); ok {
			params, err := m.args(h)
			if err != nil {
				return 0, err
			}
			return pr.LnProbRatio(n.value, params, m.storedArgs(h)), nil
		}
	}

	lnProb, err := m.LnProbability(h)
	if err != nil {
		return 0, err
	}
	return lnProb - n.storedLnProb, nil
}

// LnPosterior returns the sum of the log-probabilities of all stochastic
// nodes.
func (m *Model) LnPosterior() (float64, error) {
	var sum float64
	for _, h := range m.Handles() {
		if !m.nodes[h].IsStochastic() {
			continue
		}
		lnProb, err := m.LnProbability(h)
		if err != nil {
			return 0, err
		}
		sum += lnProb
	}
	return sum, nil
}

// AffectedStochastic returns the touched stochastic nodes whose density may
// differ because one of targets changed, the targets themselves included.
func (m *Model) AffectedStochastic(targets ...Handle) []Handle {
	var affected handleSet
	visited := make(map[Handle]bool)
	queue := slices.Clone(targets)
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		n, ok := m.Node(h)
		if !ok || visited[h] || !n.touched {
			continue
		}
		visited[h] = true
		if n.IsStochastic() {
			affected.add(h)
		}
		if n.changed {
			queue = append(queue, n.children...)
		}
	}
	return []Handle(affected)
}

// SetValue replaces the value of a stochastic node. The node is touched
// before the value changes.
func (m *Model) SetValue(h Handle, v Value) error {
	n, err := m.mutable(h)
	if err != nil {
		return err
	}
	if len(v) == 0 {
		return fmt.Errorf("node %q: empty value", n.name)
	}
	if err := m.touch(h, true); err != nil {
		return err
	}
	n.value = v.Clone()
	for i := range v {
		n.markElement(i)
	}
	return nil
}

// SetElement replaces a single element of a stochastic node's value.
func (m *Model) SetElement(h Handle, index int, x float64) error {
	n, err := m.mutable(h)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(n.value) {
		return fmt.Errorf("element %d of %q out of range [0,%d)", index, n.name, len(n.value))
	}
	if err := m.touch(h, true); err != nil {
		return err
	}
	n.value[index] = x
	n.markElement(index)
	return nil
}

// Redraw samples a new value for a stochastic node from its distribution.
func (m *Model) Redraw(r *rand.Rand, h Handle) error {
	n, err := m.mutable(h)
	if err != nil {
		return err
	}
	args, err := m.args(h)
	if err != nil {
		return err
	}
	v, err := n.behavior.draw(r, args)
	if err != nil {
		return fmt.Errorf("redrawing %q: %w", n.name, err)
	}
	return m.SetValue(h, v)
}

// Clamp fixes a stochastic node to observed data. Clamping a node that is
// touched but not yet kept fails with ErrVolatile.
func (m *Model) Clamp(h Handle, v Value) error {
	n, err := m.lookupNode(h)
	if err != nil {
		return err
	}
	if !n.IsStochastic() {
		return fmt.Errorf("clamping %q (%s): %w", n.name, n.Kind(), ErrKind)
	}
	if n.touched {
		return fmt.Errorf("clamping %q: %w", n.name, ErrVolatile)
	}
	if len(v) == 0 {
		return fmt.Errorf("clamping %q: empty value", n.name)
	}
	if err := m.touch(h, true); err != nil {
		return err
	}
	n.value = v.Clone()
	n.clamped = true
	m.keep(h)
	return nil
}

// Unclamp releases a clamped node. Its value is left as is.
func (m *Model) Unclamp(h Handle) error {
	n, err := m.lookupNode(h)
	if err != nil {
		return err
	}
	n.clamped = false
	return nil
}

func (m *Model) mutable(h Handle) (*Node, error) {
	n, err := m.lookupNode(h)
	if err != nil {
		return nil, err
	}
	if !n.IsStochastic() {
		return nil, fmt.Errorf("changing %q (%s): %w", n.name, n.Kind(), ErrKind)
	}
	if n.clamped {
		return nil, fmt.Errorf("changing %q: %w", n.name, ErrClamped)
	}
	return n, nil
}

func (n *Node) markElement(i int) {
	if n.touchedElements == nil {
		n.touchedElements = make(map[int]struct{})
	}
	n.touchedElements[i] = struct{}{}
}
