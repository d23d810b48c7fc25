package graph

import (
	"maps"
	"slices"
)

// Clone returns an independent deep copy of the model. Values, snapshots and
// lifecycle flags are copied; distributions and functions are shared. Handles
// and names are preserved, but callers holding handles into the original
// should rebind by name through Lookup.
func (m *Model) Clone() *Model {
	c := &Model{
		nodes: make([]*Node, len(m.nodes)),
		names: maps.Clone(m.names),
	}
	for h, n := range m.nodes {
		if n == nil {
			continue
		}
		cn := n.copyNode()
		cn.parents = slices.Clone(n.parents)
		cn.children = slices.Clone(n.children)
		c.nodes[h] = cn
	}
	return c
}

// CloneDownstream duplicates h and everything downstream of it inside the
// same model. Parents outside the duplicated region are shared with the
// originals. visited maps original handles to their copies; entries already
// present are reused, so a caller can clone several roots without duplicating
// shared descendants. The copies are unnamed. It returns the handle of the
// copy of h.
func (m *Model) CloneDownstream(h Handle, visited map[Handle]Handle) (Handle, error) {
	if _, err := m.lookupNode(h); err != nil {
		return 0, err
	}
	if visited == nil {
		visited = make(map[Handle]Handle)
	}
	if c, ok := visited[h]; ok {
		return c, nil
	}

	var region []Handle
	seen := make(map[Handle]bool)
	stack := []Handle{h}
	for len(stack) > 0 {
		x := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[x] {
			continue
		}
		seen[x] = true
		region = append(region, x)
		stack = append(stack, m.nodes[x].children...)
	}

	for _, x := range m.topoSort(region) {
		if _, ok := visited[x]; ok {
			continue
		}
		orig := m.nodes[x]
		cn := orig.copyNode()
		cn.name = ""
		for _, p := range orig.parents {
			if cp, ok := visited[p]; ok {
				p = cp
			}
			cn.parents = append(cn.parents, p)
		}

		ch := Handle(len(m.nodes))
		m.nodes = append(m.nodes, cn)
		for _, p := range cn.parents {
			m.nodes[p].children.add(ch)
		}
		visited[x] = ch
	}
	return visited[h], nil
}
