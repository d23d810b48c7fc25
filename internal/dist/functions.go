package dist

import (
	"fmt"
	"math"

	"github.com/specialistvlad/burstmc/internal/graph"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// elementwise is a deterministic function that combines its arguments
// element by element, broadcasting length-one arguments.
type elementwise struct {
	name    string
	minArgs int
	maxArgs int // 0 means unbounded
	init    float64
	combine func(dst, s []float64)
}

func (f *elementwise) Name() string { return f.name }

func (f *elementwise) Evaluate(args []graph.Value) (graph.Value, error) {
	if len(args) < f.minArgs || (f.maxArgs > 0 && len(args) > f.maxArgs) {
		return nil, fmt.Errorf("%s: unexpected number of arguments %d", f.name, len(args))
	}
	n, err := broadcastLen(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}
	out := make(graph.Value, n)
	for i := range out {
		out[i] = f.init
	}
	tmp := make([]float64, n)
	for _, a := range args {
		broadcast(tmp, a)
		f.combine(out, tmp)
	}
	return out, nil
}

func broadcastLen(args []graph.Value) (int, error) {
	n := 1
	for _, a := range args {
		if len(a) > 1 {
			if n > 1 && len(a) != n {
				return 0, fmt.Errorf("argument lengths %d and %d do not broadcast", n, len(a))
			}
			n = len(a)
		}
		if len(a) == 0 {
			return 0, fmt.Errorf("empty argument")
		}
	}
	return n, nil
}

func broadcast(dst []float64, v graph.Value) {
	if len(v) == 1 {
		for i := range dst {
			dst[i] = v[0]
		}
		return
	}
	copy(dst, v)
}

// unary applies a scalar function to every element of its single argument.
type unary struct {
	name string
	fn   func(float64) float64
}

func (f *unary) Name() string { return f.name }

func (f *unary) Evaluate(args []graph.Value) (graph.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s takes one argument, got %d", f.name, len(args))
	}
	out := make(graph.Value, len(args[0]))
	for i, x := range args[0] {
		out[i] = f.fn(x)
	}
	return out, nil
}

// reduce collapses its single argument into a scalar.
type reduce struct {
	name string
	fn   func([]float64) float64
}

func (f *reduce) Name() string { return f.name }

func (f *reduce) Evaluate(args []graph.Value) (graph.Value, error) {
	if len(args) != 1 || len(args[0]) == 0 {
		return nil, fmt.Errorf("%s takes one non-empty argument", f.name)
	}
	return graph.Scalar(f.fn(args[0])), nil
}

// Sum adds its arguments element-wise.
func Sum() graph.Function {
	return &elementwise{name: "sum", minArgs: 1, combine: floats.Add}
}

// Product multiplies its arguments element-wise.
func Product() graph.Function {
	return &elementwise{name: "product", minArgs: 1, init: 1, combine: floats.Mul}
}

// Exp exponentiates every element.
func Exp() graph.Function { return &unary{name: "exp", fn: math.Exp} }

// Log takes the natural logarithm of every element.
func Log() graph.Function { return &unary{name: "log", fn: math.Log} }

// Identity returns its argument.
func Identity() graph.Function {
	return &unary{name: "identity", fn: func(x float64) float64 { return x }}
}

// Total sums the elements of a vector.
func Total() graph.Function { return &reduce{name: "total", fn: floats.Sum} }

// Mean averages the elements of a vector.
func Mean() graph.Function {
	return &reduce{name: "mean", fn: func(x []float64) float64 { return stat.Mean(x, nil) }}
}

// FunctionByName returns the deterministic function registered under name.
func FunctionByName(name string) (graph.Function, error) {
	switch name {
	case "sum":
		return Sum(), nil
	case "product":
		return Product(), nil
	case "exp":
		return Exp(), nil
	case "log":
		return Log(), nil
	case "identity":
		return Identity(), nil
	case "total":
		return Total(), nil
	case "mean":
		return Mean(), nil
	}
	return nil, fmt.Errorf("unknown function %q", name)
}
