package graph

import (
	"errors"
	"math/rand/v2"
	"slices"
)

// Handle identifies a node inside its owning Model.
type Handle int

// Kind distinguishes the node variants.
type Kind int

const (
	// Constant nodes hold a fixed value.
	Constant Kind = iota
	// Deterministic nodes are a function of their parents.
	Deterministic
	// Stochastic nodes are drawn from a distribution over their parents.
	Stochastic
)

func (k Kind) String() string {
	switch k {
	case Constant:
		return "constant"
	case Deterministic:
		return "deterministic"
	case Stochastic:
		return "stochastic"
	default:
		return "unknown"
	}
}

// Value is the value held by a node. Scalars are vectors of length one.
type Value []float64

// Scalar builds a one-element value.
func Scalar(x float64) Value {
	return Value{x}
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	return slices.Clone(v)
}

// Float returns the first element, or 0 for an empty value.
func (v Value) Float() float64 {
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

// Distribution is a probability distribution plugged into stochastic nodes.
// Implementations must be safe for concurrent use because clones of a model
// running in parallel chains share them.
type Distribution interface {
	Name() string
	// LnProb returns the log-density of x given the parameter values.
	LnProb(x Value, params []Value) float64
	// Sample draws a new value given the parameter values.
	Sample(r *rand.Rand, params []Value) (Value, error)
}

// ParentRatioer is implemented by distributions that can compute the
// likelihood ratio for a fixed value when only the parameters changed,
// cheaper than two full evaluations.
type ParentRatioer interface {
	// LnProbRatio returns ln p(x | params) - ln p(x | stored).
	LnProbRatio(x Value, params, stored []Value) float64
}

// SupportsParentRatio reports whether d exposes the parent-only shortcut.
func SupportsParentRatio(d Distribution) bool {
	_, ok := d.(ParentRatioer)
	return ok
}

// Function is the pure function behind a deterministic node. Like
// distributions, functions are shared between clones.
type Function interface {
	Name() string
	Evaluate(args []Value) (Value, error)
}

var (
	// ErrCycle is returned when an edge would make the graph cyclic.
	ErrCycle = errors.New("DAG-Cycle: edge would create a cycle")
	// ErrNodeNotFound is returned for handles or names unknown to the model.
	ErrNodeNotFound = errors.New("node not found")
	// ErrEmptyName is returned when a lookup needs a name but the node has none.
	ErrEmptyName = errors.New("node has an empty name")
	// ErrUnmatchedName is returned when a name cannot be rebound in a model.
	ErrUnmatchedName = errors.New("no node matches name")
	// ErrDuplicateName is returned when two nodes would share a name.
	ErrDuplicateName = errors.New("duplicate node name")
	// ErrNoRelation is returned when a parent/child relation does not exist.
	ErrNoRelation = errors.New("no such parent/child relation")
	// ErrInUse is returned when removing a node that still has children.
	ErrInUse = errors.New("node still has children")
	// ErrKind is returned when an operation does not apply to the node variant.
	ErrKind = errors.New("operation not supported for node kind")
	// ErrClamped is returned when trying to change the value of a clamped node.
	ErrClamped = errors.New("node is clamped")
	// ErrVolatile is returned when clamping a touched-but-unkept node.
	ErrVolatile = errors.New("node is volatile (touched but not kept)")
)
