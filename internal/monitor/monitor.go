// Package monitor provides the chain monitors: a log line on screen, a
// tab-separated trace file, an in-memory trace with summaries and a
// socket.io stream. Monitors sample every Every generations and only record
// what the chain hands them.
package monitor

import (
	"fmt"
	"strconv"

	"github.com/specialistvlad/burstmc/internal/graph"
)

// binding is a monitored node, optionally a single element of it.
type binding struct {
	name   string
	handle graph.Handle
	index  int
}

// base holds the node selection and sampling frequency shared by monitors.
type base struct {
	every int
	nodes []string // empty means every named stochastic node

	model    *graph.Model
	bindings []binding
}

func newBase(every int, nodes []string) base {
	if every <= 0 {
		every = 1
	}
	return base{every: every, nodes: append([]string(nil), nodes...)}
}

// SetModel binds the monitored names to nodes of m.
func (b *base) SetModel(m *graph.Model) error {
	var bindings []binding
	if len(b.nodes) == 0 {
		for _, h := range m.Handles() {
			n, _ := m.Node(h)
			if n.IsStochastic() && n.Name() != "" {
				bindings = append(bindings, binding{name: n.Name(), handle: h, index: -1})
			}
		}
	}
	for _, name := range b.nodes {
		h, index, err := m.Lookup(name)
		if err != nil {
			return fmt.Errorf("monitored node: %w", err)
		}
		bindings = append(bindings, binding{name: name, handle: h, index: index})
	}
	b.model = m
	b.bindings = bindings
	return nil
}

// due reports whether the generation is sampled.
func (b *base) due(generation int) bool {
	return generation%b.every == 0
}

// columns returns one header per monitored scalar; vectors expand to one
// column per element.
func (b *base) columns() ([]string, error) {
	var cols []string
	for _, bd := range b.bindings {
		if bd.index >= 0 {
			cols = append(cols, bd.name)
			continue
		}
		v, err := b.model.Value(bd.handle)
		if err != nil {
			return nil, err
		}
		if len(v) == 1 {
			cols = append(cols, bd.name)
			continue
		}
		for i := range v {
			cols = append(cols, bd.name+"["+strconv.Itoa(i)+"]")
		}
	}
	return cols, nil
}

// row returns the log-posterior and the monitored values in column order.
func (b *base) row() (float64, []float64, error) {
	lnPosterior, err := b.model.LnPosterior()
	if err != nil {
		return 0, nil, err
	}
	var values []float64
	for _, bd := range b.bindings {
		v, err := b.model.Value(bd.handle)
		if err != nil {
			return 0, nil, err
		}
		if bd.index >= 0 {
			values = append(values, v[bd.index])
			continue
		}
		values = append(values, v...)
	}
	return lnPosterior, values, nil
}

// unbound returns a copy of b without model bindings.
func (b *base) unbound() base {
	return base{every: b.every, nodes: b.nodes}
}
