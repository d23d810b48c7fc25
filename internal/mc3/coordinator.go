// Package mc3 implements Metropolis-coupled MCMC: a population of chains at
// different heats that advance in parallel and periodically propose to swap
// heats between neighbouring temperatures.
//
// # Synchronization
//
// Chains share no mutable state while a block runs; each owns a cloned model,
// its moves and its random stream. A block is swapInterval generations of
// every chain, run on a bounded worker pool with one chain per task. Swaps
// happen after the pool has drained and before the next block starts, so the
// swap step is the only point where chains are read together. A swap
// exchanges heats and active flags, never graph state.
package mc3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/specialistvlad/burstmc/internal/ctxlog"
	"github.com/specialistvlad/burstmc/internal/executor"
	"github.com/specialistvlad/burstmc/internal/mcmc"
	"github.com/specialistvlad/burstmc/internal/metrics"
)

// ErrInvalidConfig is returned for malformed coordinator settings.
var ErrInvalidConfig = errors.New("invalid mc3 configuration")

// Config holds the population settings.
type Config struct {
	Chains       int
	Processors   int
	SwapInterval int
	DeltaHeat    float64
	// Swaps is the number of swap proposals after every block.
	Swaps int
	Seed  uint64
}

// swapStats counts swap proposals between two heat ranks.
type swapStats struct {
	tried, accepted int
}

// Coordinator owns the chains of a population.
type Coordinator struct {
	cfg    Config
	chains []*mcmc.Sampler
	heats  []float64 // the ladder, coldest first
	pool   executor.Executor
	rng    *rand.Rand
	stats  []swapStats // by lower heat rank of the pair
}

// Heats returns the heat ladder h_i = 1/(1+delta·i).
func Heats(n int, delta float64) []float64 {
	heats := make([]float64, n)
	for i := range heats {
		heats[i] = 1 / (1 + delta*float64(i))
	}
	return heats
}

// SwapAcceptance is the probability of exchanging heats hi and hj between
// chains whose unheated log-posteriors are li and lj.
func SwapAcceptance(hi, hj, li, lj float64) float64 {
	return math.Min(1, math.Exp(lnSwapRatio(hi, hj, li, lj)))
}

func lnSwapRatio(hi, hj, li, lj float64) float64 {
	return (hi - hj) * (lj - li)
}

// New builds a population from base, which becomes the cold chain. The other
// chains are clones of it with their own heat, index and random stream.
func New(base *mcmc.Sampler, cfg Config) (*Coordinator, error) {
	if cfg.Chains < 1 {
		return nil, fmt.Errorf("%w: chains must be positive, got %d", ErrInvalidConfig, cfg.Chains)
	}
	if cfg.SwapInterval < 1 {
		return nil, fmt.Errorf("%w: swap_interval must be positive, got %d", ErrInvalidConfig, cfg.SwapInterval)
	}
	if cfg.DeltaHeat < 0 || math.IsNaN(cfg.DeltaHeat) {
		return nil, fmt.Errorf("%w: delta_heat must not be negative, got %v", ErrInvalidConfig, cfg.DeltaHeat)
	}
	if cfg.Swaps < 0 {
		return nil, fmt.Errorf("%w: swaps must not be negative, got %d", ErrInvalidConfig, cfg.Swaps)
	}
	if cfg.Processors < 1 {
		cfg.Processors = 1
	}

	c := &Coordinator{
		cfg:   cfg,
		heats: Heats(cfg.Chains, cfg.DeltaHeat),
		pool:  executor.NewPool(min(cfg.Processors, cfg.Chains)),
		rng:   rand.New(rand.NewPCG(cfg.Seed, math.MaxUint64)),
		stats: make([]swapStats, max(cfg.Chains-1, 0)),
	}

	base.SetIndex(0)
	base.SetHeat(c.heats[0])
	base.SetActive(true)
	c.chains = append(c.chains, base)
	for i := 1; i < cfg.Chains; i++ {
		chain, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("building chain %d: %w", i, err)
		}
		chain.SetIndex(i)
		chain.SetHeat(c.heats[i])
		chain.SetActive(false)
		c.chains = append(c.chains, chain)
	}
	return c, nil
}

// Chains returns the chains in index order.
func (c *Coordinator) Chains() []*mcmc.Sampler { return c.chains }

// Cold returns the chain currently at heat 1.
func (c *Coordinator) Cold() *mcmc.Sampler { return c.byRank()[0] }

// byRank returns the chains ordered from coldest (highest heat) to hottest.
func (c *Coordinator) byRank() []*mcmc.Sampler {
	ranked := slices.Clone(c.chains)
	slices.SortStableFunc(ranked, func(a, b *mcmc.Sampler) int {
		switch {
		case a.Heat() > b.Heat():
			return -1
		case a.Heat() < b.Heat():
			return 1
		}
		return a.Index() - b.Index()
	})
	return ranked
}

// Initialize initializes every chain in parallel.
func (c *Coordinator) Initialize(ctx context.Context) error {
	return c.parallel(ctx, func(ctx context.Context, chain *mcmc.Sampler) error {
		return chain.Initialize(ctx)
	})
}

// Burnin runs generations burn-in cycles on every chain, swapping after every
// block. Moves are tuned every tuningInterval cycles.
func (c *Coordinator) Burnin(ctx context.Context, generations, tuningInterval int) error {
	for _, chain := range c.chains {
		if err := chain.BeginBurnin(); err != nil {
			return err
		}
	}
	done := 0
	for done < generations {
		block := min(c.cfg.SwapInterval, generations-done)
		offset := done
		err := c.block(ctx, func(ctx context.Context, chain *mcmc.Sampler) error {
			for g := offset + 1; g <= offset+block; g++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := chain.NextCycle(false); err != nil {
					return err
				}
				if tuningInterval > 0 && g%tuningInterval == 0 {
					chain.TuneMoves()
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		done += block
	}
	return nil
}

// Run samples generations generations on every chain, swapping after every
// block. Only the active chain writes to the monitors.
func (c *Coordinator) Run(ctx context.Context, generations int) error {
	for _, chain := range c.chains {
		if err := chain.BeginRun(); err != nil {
			return err
		}
	}
	done := 0
	for done < generations {
		block := min(c.cfg.SwapInterval, generations-done)
		err := c.block(ctx, func(ctx context.Context, chain *mcmc.Sampler) error {
			for range block {
				if err := chain.Step(ctx); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		done += block
	}
	return nil
}

// block runs fn on every chain in parallel, then performs the swaps.
func (c *Coordinator) block(ctx context.Context, fn func(context.Context, *mcmc.Sampler) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := c.parallel(ctx, fn)
	metrics.BlockDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	c.swap(ctx)
	return nil
}

func (c *Coordinator) parallel(ctx context.Context, fn func(context.Context, *mcmc.Sampler) error) error {
	tasks := make([]executor.Task, len(c.chains))
	for i, chain := range c.chains {
		tasks[i] = executor.Task{
			Name: "chain-" + strconv.Itoa(chain.Index()),
			Run:  func(ctx context.Context) error { return fn(ctx, chain) },
		}
	}
	return c.pool.Execute(ctx, tasks)
}

// swap proposes cfg.Swaps heat exchanges between neighbouring heat ranks.
func (c *Coordinator) swap(ctx context.Context) {
	if len(c.chains) < 2 {
		return
	}
	logger := ctxlog.FromContext(ctx)
	for range c.cfg.Swaps {
		ranked := c.byRank()
		j := c.rng.IntN(len(ranked) - 1)
		a, b := ranked[j], ranked[j+1]

		lnR := lnSwapRatio(a.Heat(), b.Heat(), a.LnPosterior(), b.LnPosterior())
		c.stats[j].tried++
		accepted := !math.IsNaN(lnR) && (lnR >= 0 || math.Log(c.rng.Float64()) < lnR)
		metrics.SwapProposals.WithLabelValues(metrics.ResultLabel(accepted)).Inc()
		if !accepted {
			continue
		}
		c.stats[j].accepted++

		ha, hb := a.Heat(), b.Heat()
		aa, ab := a.IsActive(), b.IsActive()
		a.SetHeat(hb)
		b.SetHeat(ha)
		a.SetActive(ab)
		b.SetActive(aa)
		logger.Debug("Swapped heats.", "chain_a", a.Index(), "chain_b", b.Index(), "heat_a", hb, "heat_b", ha)
	}
}

// Status returns a snapshot of every chain in index order. It is safe to
// call while a block runs.
func (c *Coordinator) Status() []mcmc.Status {
	status := make([]mcmc.Status, len(c.chains))
	for i, chain := range c.chains {
		status[i] = chain.Status()
	}
	return status
}

// Close closes the monitor streams of every chain.
func (c *Coordinator) Close() error {
	var errs []error
	for _, chain := range c.chains {
		errs = append(errs, chain.Close())
	}
	return errors.Join(errs...)
}

// WriteSummary writes the cold chain's operator summary followed by the swap
// statistics.
func (c *Coordinator) WriteSummary(w io.Writer) error {
	if err := c.Cold().WriteOperatorSummary(w); err != nil {
		return err
	}
	if len(c.stats) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Heat\tHeat\tTried\tAccepted\tRatio")
	for j, st := range c.stats {
		ratio := 0.0
		if st.tried > 0 {
			ratio = float64(st.accepted) / float64(st.tried)
		}
		fmt.Fprintf(tw, "%.4g\t%.4g\t%d\t%d\t%.3f\n", c.heats[j], c.heats[j+1], st.tried, st.accepted, ratio)
	}
	return tw.Flush()
}
