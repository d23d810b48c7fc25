package graph

import (
	"fmt"

	"github.com/specialistvlad/burstmc/internal/nodeid"
)

// Model owns every node of one model graph. Handles index into its table.
type Model struct {
	nodes []*Node // nil slots are removed nodes
	names map[string]Handle
}

// New creates and returns an initialized, empty Model.
func New() *Model {
	return &Model{
		names: make(map[string]Handle),
	}
}

// Len returns the number of live nodes.
func (m *Model) Len() int {
	count := 0
	for _, n := range m.nodes {
		if n != nil {
			count++
		}
	}
	return count
}

// Handles returns the handles of all live nodes in ascending order.
func (m *Model) Handles() []Handle {
	hs := make([]Handle, 0, len(m.nodes))
	for i, n := range m.nodes {
		if n != nil {
			hs = append(hs, Handle(i))
		}
	}
	return hs
}

// Node returns the node behind a handle.
func (m *Model) Node(h Handle) (*Node, bool) {
	if int(h) < 0 || int(h) >= len(m.nodes) || m.nodes[h] == nil {
		return nil, false
	}
	return m.nodes[h], true
}

// node returns the node behind a handle and panics on an invalid handle.
// Internal callers only pass handles they obtained from the model itself.
func (m *Model) node(h Handle) *Node {
	n, ok := m.Node(h)
	if !ok {
		panic(fmt.Sprintf("graph: invalid handle %d", h))
	}
	return n
}

func (m *Model) lookupNode(h Handle) (*Node, error) {
	n, ok := m.Node(h)
	if !ok {
		return nil, fmt.Errorf("handle %d: %w", h, ErrNodeNotFound)
	}
	return n, nil
}

// Lookup finds a node by name. The name may address a single element
// (`rates[2]`), in which case the element index is returned as well;
// otherwise index is nodeid.NoIndex.
func (m *Model) Lookup(name string) (h Handle, index int, err error) {
	if name == "" {
		return 0, nodeid.NoIndex, ErrEmptyName
	}
	addr, err := nodeid.Parse(name)
	if err != nil {
		return 0, nodeid.NoIndex, err
	}
	h, ok := m.names[addr.Variable()]
	if !ok {
		return 0, nodeid.NoIndex, fmt.Errorf("%w %q", ErrUnmatchedName, name)
	}
	if addr.HasIndex() && addr.Index >= len(m.nodes[h].value) {
		return 0, nodeid.NoIndex, fmt.Errorf("element %d of %q out of range: %w", addr.Index, addr.Variable(), ErrUnmatchedName)
	}
	return h, addr.Index, nil
}

// Name returns the name of the node behind h.
func (m *Model) Name(h Handle) string {
	return m.node(h).name
}

// SetName binds a name to a node, replacing any previous one.
func (m *Model) SetName(h Handle, name string) error {
	n, err := m.lookupNode(h)
	if err != nil {
		return err
	}
	if err := m.claimName(name, h); err != nil {
		return err
	}
	if n.name != "" {
		delete(m.names, n.name)
	}
	n.name = name
	if name != "" {
		m.names[name] = h
	}
	return nil
}

func (m *Model) claimName(name string, h Handle) error {
	if name == "" {
		return nil
	}
	addr, err := nodeid.Parse(name)
	if err != nil {
		return err
	}
	if addr.HasIndex() {
		return fmt.Errorf("node name %q must not carry an element index", name)
	}
	if other, ok := m.names[name]; ok && other != h {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	return nil
}

// AddConstant adds a constant node.
func (m *Model) AddConstant(name string, value Value) (Handle, error) {
	return m.insert(name, constant{}, value.Clone(), nil)
}

// AddDeterministic adds a node computed by fn from the given parents. The
// value is evaluated once so that malformed functions fail at construction.
func (m *Model) AddDeterministic(name string, fn Function, parents ...Handle) (Handle, error) {
	if fn == nil {
		return 0, fmt.Errorf("deterministic node %q: nil function", name)
	}
	h, err := m.insert(name, deterministic{fn: fn}, nil, parents)
	if err != nil {
		return 0, err
	}
	m.nodes[h].stale = true
	if _, err := m.Value(h); err != nil {
		m.unlink(h)
		return 0, err
	}
	return h, nil
}

// AddStochastic adds a node drawn from d over the given parents, starting at
// the given value.
func (m *Model) AddStochastic(name string, d Distribution, initial Value, parents ...Handle) (Handle, error) {
	if d == nil {
		return 0, fmt.Errorf("stochastic node %q: nil distribution", name)
	}
	if len(initial) == 0 {
		return 0, fmt.Errorf("stochastic node %q: initial value is required", name)
	}
	h, err := m.insert(name, stochastic{dist: d}, initial.Clone(), parents)
	if err != nil {
		return 0, err
	}
	m.nodes[h].probDirty = true
	return h, nil
}

func (m *Model) insert(name string, b behavior, value Value, parents []Handle) (Handle, error) {
	h := Handle(len(m.nodes))
	if err := m.claimName(name, h); err != nil {
		return 0, err
	}
	seen := make(handleSet, 0, len(parents))
	for _, p := range parents {
		if _, err := m.lookupNode(p); err != nil {
			return 0, fmt.Errorf("parent of %q: %w", name, err)
		}
		if seen.contains(p) {
			return 0, fmt.Errorf("parent %d listed twice for %q", p, name)
		}
		seen.add(p)
	}

	n := &Node{name: name, behavior: b, value: value}
	n.parents = append(n.parents, parents...)
	m.nodes = append(m.nodes, n)
	for _, p := range parents {
		m.nodes[p].children.add(h)
	}
	if name != "" {
		m.names[name] = h
	}
	return h, nil
}

// RemoveNode unlinks a node from its parents and frees its slot. A node that
// still has children cannot be removed.
func (m *Model) RemoveNode(h Handle) error {
	n, err := m.lookupNode(h)
	if err != nil {
		return err
	}
	if len(n.children) > 0 {
		return fmt.Errorf("removing %q: %w", n.name, ErrInUse)
	}
	m.unlink(h)
	return nil
}

func (m *Model) unlink(h Handle) {
	n := m.nodes[h]
	for _, p := range n.parents {
		m.nodes[p].children.remove(h)
	}
	if n.name != "" {
		delete(m.names, n.name)
	}
	m.nodes[h] = nil
}
