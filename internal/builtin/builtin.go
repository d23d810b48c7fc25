// Package builtin assembles the models an analysis can name. Each builder
// returns a fresh graph with observations already clamped.
package builtin

import (
	"errors"
	"fmt"
	"slices"

	"github.com/specialistvlad/burstmc/internal/dist"
	"github.com/specialistvlad/burstmc/internal/graph"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrUnknownModel is returned for a model name with no builder.
	ErrUnknownModel = errors.New("unknown model")
	// ErrNoData is returned by models that need observations when none were given.
	ErrNoData = errors.New("model requires data")
)

// Builder creates a model conditioned on data.
type Builder func(data []float64) (*graph.Model, error)

var builders = map[string]Builder{
	"normal":       Normal,
	"normal_mean":  NormalMean,
	"hierarchical": Hierarchical,
}

// Names returns the registered model names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build creates the named model.
func Build(name string, data []float64) (*graph.Model, error) {
	b, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (want one of %v)", ErrUnknownModel, name, Names())
	}
	m, err := b(data)
	if err != nil {
		return nil, fmt.Errorf("building model %q: %w", name, err)
	}
	return m, nil
}

// Normal is a single unobserved x ~ N(mean = 0, sd = 1). Data is ignored.
func Normal(_ []float64) (*graph.Model, error) {
	m := graph.New()
	mean, err := m.AddConstant("mean", graph.Scalar(0))
	if err != nil {
		return nil, err
	}
	sd, err := m.AddConstant("sd", graph.Scalar(1))
	if err != nil {
		return nil, err
	}
	if _, err := m.AddStochastic("x", dist.Normal(1), graph.Scalar(0.5), mean, sd); err != nil {
		return nil, err
	}
	return m, nil
}

// NormalMean infers the mean mu ~ N(0, 10) and standard deviation
// sigma ~ Exp(1) of observations y ~ N(mu, sigma).
func NormalMean(data []float64) (*graph.Model, error) {
	if len(data) == 0 {
		return nil, ErrNoData
	}
	m := graph.New()
	add := adder{m: m}

	zero := add.constant("mu_mean", 0)
	ten := add.constant("mu_sd", 10)
	one := add.constant("sigma_rate", 1)
	mu := add.stochastic("mu", dist.Normal(1), graph.Scalar(stat.Mean(data, nil)), zero, ten)
	sigma := add.stochastic("sigma", dist.Exponential(1), graph.Scalar(1), one)
	y := add.stochastic("y", dist.Normal(len(data)), graph.Value(slices.Clone(data)), mu, sigma)
	if add.err != nil {
		return nil, add.err
	}
	if err := m.Clamp(y, graph.Value(data)); err != nil {
		return nil, err
	}
	return m, nil
}

// Hierarchical has one observation per group. Group means are a shared
// grand mean plus per-group offsets ~ N(0, tau), and observations are
// N(grand + offsets, 1).
func Hierarchical(data []float64) (*graph.Model, error) {
	if len(data) == 0 {
		return nil, ErrNoData
	}
	k := len(data)
	m := graph.New()
	add := adder{m: m}

	zero := add.constant("prior_mean", 0)
	ten := add.constant("prior_sd", 10)
	rate := add.constant("tau_rate", 1)
	unit := add.constant("obs_sd", 1)
	grand := add.stochastic("grand", dist.Normal(1), graph.Scalar(stat.Mean(data, nil)), zero, ten)
	tau := add.stochastic("tau", dist.Exponential(1), graph.Scalar(1), rate)
	offsets := add.stochastic("offsets", dist.Normal(k), make(graph.Value, k), zero, tau)
	means := add.deterministic("means", dist.Sum(), grand, offsets)
	obs := add.stochastic("obs", dist.Normal(k), graph.Value(slices.Clone(data)), means, unit)
	if add.err != nil {
		return nil, add.err
	}
	if err := m.Clamp(obs, graph.Value(data)); err != nil {
		return nil, err
	}
	return m, nil
}

// adder records the first error of a sequence of node insertions.
type adder struct {
	m   *graph.Model
	err error
}

func (a *adder) constant(name string, x float64) graph.Handle {
	if a.err != nil {
		return -1
	}
	var h graph.Handle
	h, a.err = a.m.AddConstant(name, graph.Scalar(x))
	return h
}

func (a *adder) deterministic(name string, fn graph.Function, parents ...graph.Handle) graph.Handle {
	if a.err != nil {
		return -1
	}
	var h graph.Handle
	h, a.err = a.m.AddDeterministic(name, fn, parents...)
	return h
}

func (a *adder) stochastic(name string, d graph.Distribution, initial graph.Value, parents ...graph.Handle) graph.Handle {
	if a.err != nil {
		return -1
	}
	var h graph.Handle
	h, a.err = a.m.AddStochastic(name, d, initial, parents...)
	return h
}
