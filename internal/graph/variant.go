package graph

import (
	"fmt"
	"math/rand/v2"
)

// behavior is the kind-specific part of a node.
type behavior interface {
	kind() Kind
	// refresh recomputes the value from the parent values.
	refresh(args []Value) (Value, error)
	// density returns the log-probability contribution of x.
	density(x Value, args []Value) float64
	// draw samples a fresh value.
	draw(r *rand.Rand, args []Value) (Value, error)
}

type constant struct{}

func (constant) kind() Kind { return Constant }

func (constant) refresh([]Value) (Value, error) { return nil, nil }

func (constant) density(Value, []Value) float64 { return 0 }

func (constant) draw(*rand.Rand, []Value) (Value, error) {
	return nil, fmt.Errorf("draw: %w", ErrKind)
}

type deterministic struct {
	fn Function
}

func (deterministic) kind() Kind { return Deterministic }

func (d deterministic) refresh(args []Value) (Value, error) {
	v, err := d.fn.Evaluate(args)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", d.fn.Name(), err)
	}
	return v, nil
}

func (deterministic) density(Value, []Value) float64 { return 0 }

func (deterministic) draw(*rand.Rand, []Value) (Value, error) {
	return nil, fmt.Errorf("draw: %w", ErrKind)
}

type stochastic struct {
	dist Distribution
}

func (stochastic) kind() Kind { return Stochastic }

func (stochastic) refresh([]Value) (Value, error) { return nil, nil }

func (s stochastic) density(x Value, args []Value) float64 {
	return s.dist.LnProb(x, args)
}

func (s stochastic) draw(r *rand.Rand, args []Value) (Value, error) {
	v, err := s.dist.Sample(r, args)
	if err != nil {
		return nil, fmt.Errorf("sampling %s: %w", s.dist.Name(), err)
	}
	return v, nil
}
