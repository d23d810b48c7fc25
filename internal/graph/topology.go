package graph

import (
	"fmt"
	"slices"
)

// Parents returns the ordered parents of a node.
func (m *Model) Parents(h Handle) []Handle {
	return slices.Clone(m.node(h).parents)
}

// Children returns the children of a node in ascending handle order.
func (m *Model) Children(h Handle) []Handle {
	return slices.Clone([]Handle(m.node(h).children))
}

// AddParent makes parent an argument of child, appended after the existing
// ones. The relation is recorded on both nodes and the child is touched
// beforehand, so a restore brings back its value from before the change. An
// edge that would close a cycle fails with ErrCycle and changes nothing.
func (m *Model) AddParent(child, parent Handle) error {
	c, p, err := m.edgeEnds(child, parent)
	if err != nil {
		return err
	}
	if slices.Contains(c.parents, parent) {
		return nil
	}
	if err := m.checkAcyclic(child, parent); err != nil {
		return err
	}

	if err := m.touchAsChild(child); err != nil {
		return err
	}
	c.parents = append(c.parents, parent)
	p.children.add(child)
	return nil
}

// AddChild is the mirror of AddParent.
func (m *Model) AddChild(parent, child Handle) error {
	return m.AddParent(child, parent)
}

// RemoveParent drops a parent/child relation from both endpoints and touches
// the child.
func (m *Model) RemoveParent(child, parent Handle) error {
	c, p, err := m.edgeEnds(child, parent)
	if err != nil {
		return err
	}
	i := slices.Index(c.parents, parent)
	if i < 0 {
		return fmt.Errorf("%q is not a parent of %q: %w", p.name, c.name, ErrNoRelation)
	}

	if err := m.touchAsChild(child); err != nil {
		return err
	}
	c.parents = slices.Delete(c.parents, i, i+1)
	p.children.remove(child)
	return nil
}

// RemoveChild is the mirror of RemoveParent.
func (m *Model) RemoveChild(parent, child Handle) error {
	return m.RemoveParent(child, parent)
}

// SwapParent replaces oldParent by newParent at the same argument position.
func (m *Model) SwapParent(child, oldParent, newParent Handle) error {
	c, oldP, err := m.edgeEnds(child, oldParent)
	if err != nil {
		return err
	}
	newP, err := m.lookupNode(newParent)
	if err != nil {
		return err
	}
	i := slices.Index(c.parents, oldParent)
	if i < 0 {
		return fmt.Errorf("%q is not a parent of %q: %w", oldP.name, c.name, ErrNoRelation)
	}
	if oldParent == newParent {
		return nil
	}
	if slices.Contains(c.parents, newParent) {
		return fmt.Errorf("%q is already a parent of %q", newP.name, c.name)
	}
	if err := m.checkAcyclic(child, newParent); err != nil {
		return err
	}

	if err := m.touchAsChild(child); err != nil {
		return err
	}
	c.parents[i] = newParent
	oldP.children.remove(child)
	newP.children.add(child)
	return nil
}

func (m *Model) edgeEnds(child, parent Handle) (*Node, *Node, error) {
	c, err := m.lookupNode(child)
	if err != nil {
		return nil, nil, err
	}
	p, err := m.lookupNode(parent)
	if err != nil {
		return nil, nil, err
	}
	if c.IsConstant() {
		return nil, nil, fmt.Errorf("constant %q cannot have parents: %w", c.name, ErrKind)
	}
	return c, p, nil
}

// checkAcyclic fails if parent is child itself or downstream of it.
func (m *Model) checkAcyclic(child, parent Handle) error {
	if child == parent || m.reaches(child, parent) {
		return fmt.Errorf("%w: %q -> %q", ErrCycle, m.nodes[parent].name, m.nodes[child].name)
	}
	return nil
}

// reaches reports whether to is reachable from from by following children.
func (m *Model) reaches(from, to Handle) bool {
	visited := make(map[Handle]bool)
	stack := []Handle{from}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == to {
			return true
		}
		if visited[h] {
			continue
		}
		visited[h] = true
		stack = append(stack, m.nodes[h].children...)
	}
	return false
}

// DetectCycles validates the whole graph. It returns a non-nil error naming a
// node involved in the first cycle found. Edge insertion already rejects
// cycles; this is a consistency check for clones and tests.
func (m *Model) DetectCycles() error {
	// permanent: fully visited and known to be safe.
	// temporary: on the current DFS stack.
	permanent := make(map[Handle]bool)
	temporary := make(map[Handle]bool)

	var visit func(h Handle) error
	visit = func(h Handle) error {
		if permanent[h] {
			return nil
		}
		if temporary[h] {
			return fmt.Errorf("%w involving node %q", ErrCycle, m.nodes[h].name)
		}
		temporary[h] = true
		for _, c := range m.nodes[h].children {
			if err := visit(c); err != nil {
				return err
			}
		}
		delete(temporary, h)
		permanent[h] = true
		return nil
	}

	for _, h := range m.Handles() {
		if err := visit(h); err != nil {
			return err
		}
	}
	return nil
}

// CheckConsistency verifies that every parent relation has its mirrored child
// relation and vice versa.
func (m *Model) CheckConsistency() error {
	for _, h := range m.Handles() {
		n := m.nodes[h]
		for _, p := range n.parents {
			pn, ok := m.Node(p)
			if !ok || !pn.children.contains(h) {
				return fmt.Errorf("parent %d of %q does not list it as child: %w", p, n.name, ErrNoRelation)
			}
		}
		for _, c := range n.children {
			cn, ok := m.Node(c)
			if !ok || !slices.Contains(cn.parents, h) {
				return fmt.Errorf("child %d of %q does not list it as parent: %w", c, n.name, ErrNoRelation)
			}
		}
	}
	return nil
}

// TopologicalOrder returns all live handles so that every parent comes before
// its children. Ties are broken by handle order.
func (m *Model) TopologicalOrder() []Handle {
	return m.topoSort(m.Handles())
}

// topoSort orders a subset of handles using Kahn's algorithm restricted to
// edges inside the subset.
func (m *Model) topoSort(subset []Handle) []Handle {
	in := make(map[Handle]int, len(subset))
	for _, h := range subset {
		in[h] = 0
	}
	for _, h := range subset {
		for _, c := range m.nodes[h].children {
			if _, ok := in[c]; ok {
				in[c]++
			}
		}
	}

	var ready handleSet
	for _, h := range subset {
		if in[h] == 0 {
			ready.add(h)
		}
	}
	order := make([]Handle, 0, len(subset))
	for len(ready) > 0 {
		h := ready[0]
		ready = ready[1:]
		order = append(order, h)
		for _, c := range m.nodes[h].children {
			if _, ok := in[c]; !ok {
				continue
			}
			in[c]--
			if in[c] == 0 {
				ready.add(c)
			}
		}
	}
	return order
}
