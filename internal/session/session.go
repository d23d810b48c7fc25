// Package session defines the run session an application drives. It
// abstracts away whether a single chain or a Metropolis-coupled population
// is doing the sampling.
package session

import (
	"context"
	"io"

	"github.com/specialistvlad/burstmc/internal/mc3"
	"github.com/specialistvlad/burstmc/internal/mcmc"
)

// Session represents a single analysis run and manages its lifecycle.
type Session interface {
	Initialize(ctx context.Context) error
	Burnin(ctx context.Context, generations, tuningInterval int) error
	Run(ctx context.Context, generations int) error
	// WriteSummary writes the move statistics, and swap statistics where
	// there are any.
	WriteSummary(w io.Writer) error
	// Status may be called from any goroutine while the session runs.
	Status() []mcmc.Status
	// Close releases the monitor outputs.
	Close() error
}

var (
	_ Session = (*Chain)(nil)
	_ Session = (*mc3.Coordinator)(nil)
)

// New returns a population session when population settings are given and a
// single-chain session otherwise.
func New(base *mcmc.Sampler, population *mc3.Config) (Session, error) {
	if population == nil {
		return NewChain(base), nil
	}
	c, err := mc3.New(base, *population)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Chain is a session over one sampler.
type Chain struct {
	sampler *mcmc.Sampler
}

// NewChain wraps s.
func NewChain(s *mcmc.Sampler) *Chain {
	return &Chain{sampler: s}
}

// Sampler returns the wrapped chain.
func (c *Chain) Sampler() *mcmc.Sampler { return c.sampler }

func (c *Chain) Initialize(ctx context.Context) error { return c.sampler.Initialize(ctx) }

func (c *Chain) Burnin(ctx context.Context, generations, tuningInterval int) error {
	return c.sampler.Burnin(ctx, generations, tuningInterval)
}

func (c *Chain) Run(ctx context.Context, generations int) error {
	return c.sampler.Run(ctx, generations)
}

func (c *Chain) WriteSummary(w io.Writer) error { return c.sampler.WriteOperatorSummary(w) }

func (c *Chain) Status() []mcmc.Status { return []mcmc.Status{c.sampler.Status()} }

func (c *Chain) Close() error { return c.sampler.Close() }
