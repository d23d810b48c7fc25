package mcmc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"text/tabwriter"

	"github.com/specialistvlad/burstmc/internal/ctxlog"
	"github.com/specialistvlad/burstmc/internal/graph"
	"github.com/specialistvlad/burstmc/internal/metrics"
	"github.com/specialistvlad/burstmc/internal/move"
	"github.com/specialistvlad/burstmc/internal/scheduler"
)

// State is the lifecycle state of a chain.
type State int

const (
	Uninitialized State = iota
	Initialized
	BurningIn
	Sampling
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case BurningIn:
		return "burning-in"
	case Sampling:
		return "sampling"
	default:
		return "unknown"
	}
}

// RetryPolicy bounds the initial-state search.
type RetryPolicy struct {
	MaxAttempts int
}

// DefaultRetryPolicy allows 100 attempts.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 100}

// Config holds the settings of one chain.
type Config struct {
	Index    int
	Heat     float64
	Active   bool
	Seed     uint64
	Schedule string
	Retry    RetryPolicy
}

// Sampler is one Markov chain.
type Sampler struct {
	cfg      Config
	model    *graph.Model
	moves    []move.Move
	schedule scheduler.Schedule
	monitors []Monitor

	src *rand.PCG
	rng *rand.Rand

	state       State
	generation  int
	lnPosterior float64
	streamsOpen bool

	mu     sync.RWMutex
	status Status
}

// Status is a snapshot of a chain that may be read while the chain runs.
type Status struct {
	Index       int     `json:"index"`
	Heat        float64 `json:"heat"`
	Active      bool    `json:"active"`
	State       string  `json:"state"`
	Generation  int     `json:"generation"`
	LnPosterior float64 `json:"ln_posterior"`
}

// New builds a chain over m. Moves must already be bound to m; monitors are
// bound here.
func New(m *graph.Model, moves []move.Move, monitors []Monitor, cfg Config) (*Sampler, error) {
	if !(cfg.Heat > 0 && cfg.Heat <= 1) {
		return nil, fmt.Errorf("%w: heat %v outside (0,1]", ErrInvalidConfig, cfg.Heat)
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy
	}
	if cfg.Retry.MaxAttempts < 0 {
		return nil, fmt.Errorf("%w: negative retry attempts %d", ErrInvalidConfig, cfg.Retry.MaxAttempts)
	}
	if cfg.Schedule == "" {
		cfg.Schedule = scheduler.Random
	}
	schedule, err := scheduler.New(cfg.Schedule, moves)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for _, mon := range monitors {
		if err := mon.SetModel(m); err != nil {
			return nil, fmt.Errorf("binding monitor: %w", err)
		}
	}

	s := &Sampler{
		cfg:      cfg,
		model:    m,
		moves:    moves,
		schedule: schedule,
		monitors: monitors,
	}
	s.reseed()
	s.publish()
	return s, nil
}

func (s *Sampler) reseed() {
	s.src = rand.NewPCG(s.cfg.Seed, uint64(s.cfg.Index))
	s.rng = rand.New(s.src)
}

// Model returns the chain's model graph.
func (s *Sampler) Model() *graph.Model { return s.model }

// Moves returns the chain's moves.
func (s *Sampler) Moves() []move.Move { return s.moves }

// Index returns the chain index.
func (s *Sampler) Index() int { return s.cfg.Index }

// SetIndex changes the chain index and restarts the random stream derived
// from the seed and the new index.
func (s *Sampler) SetIndex(i int) {
	s.cfg.Index = i
	s.reseed()
	s.publish()
}

// Heat returns the exponent applied to the posterior.
func (s *Sampler) Heat() float64 { return s.cfg.Heat }

// SetHeat changes the heat. Callers keep it in (0,1].
func (s *Sampler) SetHeat(h float64) {
	s.cfg.Heat = h
	s.publish()
}

// IsActive reports whether the chain notifies its monitors.
func (s *Sampler) IsActive() bool { return s.cfg.Active }

// SetActive changes the active flag.
func (s *Sampler) SetActive(active bool) {
	s.cfg.Active = active
	s.publish()
}

// State returns the lifecycle state.
func (s *Sampler) State() State { return s.state }

// Generation returns the number of completed sampling generations.
func (s *Sampler) Generation() int { return s.generation }

// LnPosterior returns the unheated log-posterior of the current state.
func (s *Sampler) LnPosterior() float64 { return s.lnPosterior }

// Rand returns the chain's random stream.
func (s *Sampler) Rand() *rand.Rand { return s.rng }

// Status returns the snapshot taken after the last cycle. It is safe to call
// from any goroutine.
func (s *Sampler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Sampler) publish() {
	st := Status{
		Index:       s.cfg.Index,
		Heat:        s.cfg.Heat,
		Active:      s.cfg.Active,
		State:       s.state.String(),
		Generation:  s.generation,
		LnPosterior: s.lnPosterior,
	}
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *Sampler) logger(ctx context.Context) *slog.Logger {
	return ctxlog.FromContext(ctx).With("chain", s.cfg.Index)
}

// Initialize searches for a starting state with a finite log-posterior. An
// inactive chain starts from values redrawn from the prior; redraws also
// happen between failed attempts.
func (s *Sampler) Initialize(ctx context.Context) error {
	logger := s.logger(ctx)

	if err := s.model.TouchAll(); err != nil {
		return fmt.Errorf("chain %d: %w", s.cfg.Index, err)
	}
	var lastErr error
	if !s.cfg.Active {
		lastErr = s.redraw()
	}

	var badNode string
	for attempt := 1; attempt <= s.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			lastErr = s.redraw()
		}
		if err := s.model.TouchAll(); err != nil {
			return fmt.Errorf("chain %d: %w", s.cfg.Index, err)
		}
		lnPosterior, node, err := s.sumLnProbabilities()
		s.model.KeepAll()
		if err != nil {
			return fmt.Errorf("chain %d: %w", s.cfg.Index, err)
		}
		if node == "" {
			s.lnPosterior = lnPosterior
			s.state = Initialized
			s.publish()
			logger.Debug("Chain initialized.", "attempts", attempt, "ln_posterior", lnPosterior)
			return nil
		}
		badNode = node
		logger.Debug("Starting state has non-finite probability, retrying.", "attempt", attempt, "node", node)
	}

	return &InitError{Chain: s.cfg.Index, Node: badNode, Attempts: s.cfg.Retry.MaxAttempts, Err: lastErr}
}

// redraw samples every unclamped stochastic node from its prior, parents
// first. The first failure is returned after all nodes were tried.
func (s *Sampler) redraw() error {
	var first error
	for _, h := range s.model.TopologicalOrder() {
		n, _ := s.model.Node(h)
		if !n.IsStochastic() || n.IsClamped() {
			continue
		}
		if err := s.model.Redraw(s.rng, h); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// sumLnProbabilities returns the total log-posterior and the name of the
// first node with a non-finite contribution.
func (s *Sampler) sumLnProbabilities() (float64, string, error) {
	var sum float64
	for _, h := range s.model.Handles() {
		n, _ := s.model.Node(h)
		if !n.IsStochastic() {
			continue
		}
		lnProb, err := s.model.LnProbability(h)
		if err != nil {
			return 0, "", err
		}
		if math.IsNaN(lnProb) || math.IsInf(lnProb, 0) {
			name := n.Name()
			if name == "" {
				name = fmt.Sprintf("#%d", h)
			}
			return 0, name, nil
		}
		sum += lnProb
	}
	return sum, "", nil
}

// NextCycle performs one generation worth of proposals. The generation
// counter is advanced only when advance is set.
func (s *Sampler) NextCycle(advance bool) error {
	if s.state == Uninitialized {
		return ErrNotInitialized
	}
	n := int(math.Round(s.schedule.MovesPerIteration()))
	for range n {
		if err := s.propose(s.schedule.Next(s.rng)); err != nil {
			return err
		}
	}
	if advance {
		s.generation++
	}
	s.publish()
	return nil
}

// propose runs a single Metropolis-Hastings step with mv.
func (s *Sampler) propose(mv move.Move) error {
	targets := mv.Targets()
	lnHastings, err := mv.Propose(s.rng, s.cfg.Heat)
	if err != nil {
		for _, h := range targets {
			_ = s.model.Restore(h)
		}
		return fmt.Errorf("chain %d: %s on %q: %w", s.cfg.Index, mv.Name(), mv.ParamName(), err)
	}

	var delta float64
	for _, h := range s.model.AffectedStochastic(targets...) {
		ratio, err := s.model.LnProbabilityRatio(h)
		if err != nil {
			for _, t := range targets {
				_ = s.model.Restore(t)
			}
			return fmt.Errorf("chain %d: %s on %q: %w", s.cfg.Index, mv.Name(), mv.ParamName(), err)
		}
		delta += ratio
	}

	lnAccept := s.cfg.Heat*delta + lnHastings
	if accept(s.rng, lnAccept) {
		for _, h := range targets {
			_ = s.model.Keep(h)
		}
		mv.Accept()
		s.lnPosterior += delta
		return nil
	}
	for _, h := range targets {
		_ = s.model.Restore(h)
	}
	mv.Reject()
	return nil
}

// accept applies the Metropolis rule to a log acceptance ratio.
func accept(r *rand.Rand, lnAccept float64) bool {
	if math.IsNaN(lnAccept) {
		return false
	}
	if lnAccept >= 0 {
		return true
	}
	return math.Log(r.Float64()) < lnAccept
}

// Burnin runs generations cycles without advancing the generation counter,
// tuning every move each tuningInterval cycles. Move counters are reset at
// the start.
func (s *Sampler) Burnin(ctx context.Context, generations, tuningInterval int) error {
	if err := s.BeginBurnin(); err != nil {
		return err
	}
	logger := s.logger(ctx)
	logger.Debug("Burn-in started.", "generations", generations, "tuning_interval", tuningInterval)
	for g := 1; g <= generations; g++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.NextCycle(false); err != nil {
			return err
		}
		if tuningInterval > 0 && g%tuningInterval == 0 {
			s.TuneMoves()
		}
	}
	logger.Debug("Burn-in finished.", "ln_posterior", s.lnPosterior)
	return nil
}

// BeginBurnin enters the burn-in state and resets the move counters.
func (s *Sampler) BeginBurnin() error {
	if s.state == Uninitialized {
		return ErrNotInitialized
	}
	s.state = BurningIn
	s.resetCounters()
	s.publish()
	return nil
}

// TuneMoves tunes every move of the chain.
func (s *Sampler) TuneMoves() {
	for _, mv := range s.moves {
		mv.Tune()
	}
}

// Run samples generations more generations. Monitor streams are opened on
// the first call, and a fresh chain records generation 0. Move counters are
// reset at the start of every call.
func (s *Sampler) Run(ctx context.Context, generations int) error {
	if err := s.BeginRun(); err != nil {
		return err
	}
	for range generations {
		if err := s.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// BeginRun enters the sampling state, resets the move counters and opens the
// monitors. At generation 0 the initial state is reported.
func (s *Sampler) BeginRun() error {
	if s.state == Uninitialized {
		return ErrNotInitialized
	}
	s.state = Sampling
	s.resetCounters()
	s.publish()
	if err := s.StartMonitors(); err != nil {
		return err
	}
	if s.generation == 0 {
		return s.Monitor()
	}
	return nil
}

// Step advances one sampling generation and notifies the monitors.
func (s *Sampler) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.NextCycle(true); err != nil {
		return err
	}
	return s.Monitor()
}

// StartMonitors opens the monitor streams. The active chain also writes the
// headers. Calling it again is a no-op.
func (s *Sampler) StartMonitors() error {
	if s.streamsOpen {
		return nil
	}
	for _, mon := range s.monitors {
		if err := mon.OpenStream(); err != nil {
			return fmt.Errorf("chain %d: opening monitor: %w", s.cfg.Index, err)
		}
	}
	s.streamsOpen = true
	if !s.cfg.Active {
		return nil
	}
	for _, mon := range s.monitors {
		if err := mon.PrintHeader(); err != nil {
			return fmt.Errorf("chain %d: monitor header: %w", s.cfg.Index, err)
		}
	}
	return nil
}

// Monitor reports the current generation to the metrics and, for the active
// chain, to the monitors.
func (s *Sampler) Monitor() error {
	label := metrics.ChainLabel(s.cfg.Index)
	metrics.ChainGeneration.WithLabelValues(label).Set(float64(s.generation))
	metrics.ChainLnPosterior.WithLabelValues(label).Set(s.lnPosterior)
	if !s.cfg.Active {
		return nil
	}
	for _, mon := range s.monitors {
		if err := mon.Monitor(s.generation); err != nil {
			return fmt.Errorf("chain %d: monitor at generation %d: %w", s.cfg.Index, s.generation, err)
		}
	}
	return nil
}

// Close closes the monitor streams opened by Run.
func (s *Sampler) Close() error {
	if !s.streamsOpen {
		return nil
	}
	s.streamsOpen = false
	var first error
	for _, mon := range s.monitors {
		if err := mon.CloseStream(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *Sampler) resetCounters() {
	for _, mv := range s.moves {
		mv.ResetCounters()
	}
}

// Clone returns an independent copy of the chain: the model is deep-copied
// and every move and monitor is rebound to the copy by node name. The copy
// continues the same random stream; use SetIndex to give it its own.
func (s *Sampler) Clone() (*Sampler, error) {
	m := s.model.Clone()

	moves := make([]move.Move, len(s.moves))
	for i, mv := range s.moves {
		c, err := mv.Clone(m)
		if err != nil {
			return nil, fmt.Errorf("cloning chain %d: %w", s.cfg.Index, err)
		}
		moves[i] = c
	}
	monitors := make([]Monitor, len(s.monitors))
	for i, mon := range s.monitors {
		monitors[i] = mon.Clone()
	}

	c, err := New(m, moves, monitors, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("cloning chain %d: %w", s.cfg.Index, err)
	}
	src := *s.src
	c.src = &src
	c.rng = rand.New(c.src)
	c.state = s.state
	c.generation = s.generation
	c.lnPosterior = s.lnPosterior
	c.publish()
	return c, nil
}

// WriteOperatorSummary writes a table of move statistics.
func (s *Sampler) WriteOperatorSummary(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Name\tParam\tWeight\tTried\tAccepted\tRatio\tTuning")
	for _, mv := range s.moves {
		ratio := 0.0
		if mv.Tried() > 0 {
			ratio = float64(mv.Accepted()) / float64(mv.Tried())
		}
		fmt.Fprintf(tw, "%s\t%s\t%g\t%d\t%d\t%.3f\t%.4g\n",
			mv.Name(), mv.ParamName(), mv.Weight(), mv.Tried(), mv.Accepted(), ratio, mv.TuningParameter())
	}
	return tw.Flush()
}
