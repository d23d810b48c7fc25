// Package dist provides the leaf distributions and deterministic functions
// that model graphs are assembled from. Densities and samplers are backed by
// gonum's stat/distuv.
package dist

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/specialistvlad/burstmc/internal/graph"
	"gonum.org/v1/gonum/stat/distuv"
)

// univariate is the subset of distuv types used here.
type univariate interface {
	LogProb(x float64) float64
	Rand() float64
}

// family describes one parametric distribution.
type family struct {
	name   string
	params []string
	valid  func(p []float64) bool
	build  func(p []float64, src rand.Source) univariate
}

var families = map[string]*family{
	"normal": {
		name:   "normal",
		params: []string{"mean", "sd"},
		valid:  func(p []float64) bool { return p[1] > 0 },
		build: func(p []float64, src rand.Source) univariate {
			return distuv.Normal{Mu: p[0], Sigma: p[1], Src: src}
		},
	},
	"lognormal": {
		name:   "lognormal",
		params: []string{"meanlog", "sdlog"},
		valid:  func(p []float64) bool { return p[1] > 0 },
		build: func(p []float64, src rand.Source) univariate {
			return distuv.LogNormal{Mu: p[0], Sigma: p[1], Src: src}
		},
	},
	"exponential": {
		name:   "exponential",
		params: []string{"rate"},
		valid:  func(p []float64) bool { return p[0] > 0 },
		build: func(p []float64, src rand.Source) univariate {
			return distuv.Exponential{Rate: p[0], Src: src}
		},
	},
	"uniform": {
		name:   "uniform",
		params: []string{"min", "max"},
		valid:  func(p []float64) bool { return p[0] < p[1] },
		build: func(p []float64, src rand.Source) univariate {
			return distuv.Uniform{Min: p[0], Max: p[1], Src: src}
		},
	},
	"gamma": {
		name:   "gamma",
		params: []string{"shape", "rate"},
		valid:  func(p []float64) bool { return p[0] > 0 && p[1] > 0 },
		build: func(p []float64, src rand.Source) univariate {
			return distuv.Gamma{Alpha: p[0], Beta: p[1], Src: src}
		},
	},
	"beta": {
		name:   "beta",
		params: []string{"alpha", "beta"},
		valid:  func(p []float64) bool { return p[0] > 0 && p[1] > 0 },
		build: func(p []float64, src rand.Source) univariate {
			return distuv.Beta{Alpha: p[0], Beta: p[1], Src: src}
		},
	},
}

// Univariate applies a scalar distribution independently to every element of
// a value. A parameter either has length one and is shared by all elements,
// or matches the value's length and is applied element-wise.
type Univariate struct {
	family *family
	size   int
}

var _ graph.Distribution = (*Univariate)(nil)

// Name returns the family name, e.g. "normal".
func (d *Univariate) Name() string { return d.family.name }

// Params returns the parameter names in argument order.
func (d *Univariate) Params() []string { return d.family.params }

// LnProb returns the summed log-density of x. Invalid parameters or a wrong
// number of them yield -Inf.
func (d *Univariate) LnProb(x graph.Value, params []graph.Value) float64 {
	if len(params) != len(d.family.params) {
		return math.Inf(-1)
	}
	p := make([]float64, len(params))
	var sum float64
	for i, xi := range x {
		if !d.elementParams(p, params, i) || !d.family.valid(p) {
			return math.Inf(-1)
		}
		sum += d.family.build(p, nil).LogProb(xi)
	}
	return sum
}

// Sample draws a value of the configured size, or of the largest parameter
// length when no size was set.
func (d *Univariate) Sample(r *rand.Rand, params []graph.Value) (graph.Value, error) {
	if len(params) != len(d.family.params) {
		return nil, fmt.Errorf("%s takes %d parameters (%v), got %d", d.family.name, len(d.family.params), d.family.params, len(params))
	}
	n := d.size
	if n == 0 {
		n = 1
		for _, p := range params {
			n = max(n, len(p))
		}
	}

	out := make(graph.Value, n)
	p := make([]float64, len(params))
	for i := range out {
		if !d.elementParams(p, params, i) {
			return nil, fmt.Errorf("%s: parameter length does not match value length %d", d.family.name, n)
		}
		if !d.family.valid(p) {
			return nil, fmt.Errorf("%s: invalid parameters %v", d.family.name, p)
		}
		out[i] = d.family.build(p, r).Rand()
	}
	return out, nil
}

// elementParams fills p with the parameters that apply to element i.
func (d *Univariate) elementParams(p []float64, params []graph.Value, i int) bool {
	for j, v := range params {
		switch {
		case len(v) == 1:
			p[j] = v[0]
		case i < len(v):
			p[j] = v[i]
		default:
			return false
		}
	}
	return true
}

// NormalDist is the normal distribution. It also knows the likelihood ratio
// for a fixed value when only the parameters moved, which skips the
// normalising constants of a full evaluation.
type NormalDist struct {
	Univariate
}

var _ graph.ParentRatioer = (*NormalDist)(nil)

// LnProbRatio returns ln N(x | params) - ln N(x | stored).
func (d *NormalDist) LnProbRatio(x graph.Value, params, stored []graph.Value) float64 {
	if len(params) != 2 || len(stored) != 2 {
		return math.NaN()
	}
	p := make([]float64, 2)
	q := make([]float64, 2)
	var ratio float64
	for i, xi := range x {
		if !d.elementParams(p, params, i) || !d.elementParams(q, stored, i) {
			return math.NaN()
		}
		if p[1] <= 0 {
			return math.Inf(-1)
		}
		if q[1] <= 0 {
			return math.Inf(1)
		}
		zp := (xi - p[0]) / p[1]
		zq := (xi - q[0]) / q[1]
		ratio += math.Log(q[1]/p[1]) - 0.5*(zp*zp-zq*zq)
	}
	return ratio
}

// Normal returns a normal distribution over values of the given size; a size
// of zero follows the parameter lengths.
func Normal(size int) graph.Distribution {
	return &NormalDist{Univariate{family: families["normal"], size: size}}
}

// LogNormal returns a log-normal distribution.
func LogNormal(size int) graph.Distribution {
	return &Univariate{family: families["lognormal"], size: size}
}

// Exponential returns an exponential distribution parameterised by rate.
func Exponential(size int) graph.Distribution {
	return &Univariate{family: families["exponential"], size: size}
}

// Uniform returns a uniform distribution on [min, max].
func Uniform(size int) graph.Distribution {
	return &Univariate{family: families["uniform"], size: size}
}

// Gamma returns a gamma distribution parameterised by shape and rate.
func Gamma(size int) graph.Distribution {
	return &Univariate{family: families["gamma"], size: size}
}

// Beta returns a beta distribution.
func Beta(size int) graph.Distribution {
	return &Univariate{family: families["beta"], size: size}
}

// ByName returns the distribution registered under name.
func ByName(name string, size int) (graph.Distribution, error) {
	switch name {
	case "normal":
		return Normal(size), nil
	case "lognormal":
		return LogNormal(size), nil
	case "exponential":
		return Exponential(size), nil
	case "uniform":
		return Uniform(size), nil
	case "gamma":
		return Gamma(size), nil
	case "beta":
		return Beta(size), nil
	}
	return nil, fmt.Errorf("unknown distribution %q", name)
}
