// Package move implements the Metropolis-Hastings proposal operators that a
// chain applies to its model graph.
//
// A move changes the value of its target node through the Model, which
// touches the node first. The caller then evaluates the log-probability ratio
// over the affected region and either keeps or restores the target. Moves
// only report the Hastings ratio and keep their own statistics.
package move

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/specialistvlad/burstmc/internal/graph"
	"github.com/specialistvlad/burstmc/internal/metrics"
)

// TargetAcceptance is the acceptance rate auto-tuning aims for.
const TargetAcceptance = 0.44

// ErrInvalid is returned for malformed move settings.
var ErrInvalid = errors.New("invalid move")

// Move is a proposal operator bound to nodes of one model.
type Move interface {
	// Name is the operator kind, e.g. "scale".
	Name() string
	// ParamName is the name of the node the move acts on.
	ParamName() string
	// Weight is the expected number of proposals per iteration.
	Weight() float64
	// Targets returns the handles of the nodes the move changes.
	Targets() []graph.Handle
	// Propose changes the targets and returns the log Hastings ratio.
	Propose(r *rand.Rand, heat float64) (float64, error)
	// Accept and Reject record the outcome of the last proposal.
	Accept()
	Reject()
	// Tune adjusts the tuning parameter toward TargetAcceptance using the
	// proposals made since the previous call.
	Tune()
	ResetCounters()
	Tried() int
	Accepted() int
	TuningParameter() float64
	// Clone returns a copy of the move bound to the node of the same name in m.
	Clone(m *graph.Model) (Move, error)
}

// Config holds the settings shared by all move kinds.
type Config struct {
	Target   string
	Weight   float64
	Tuning   float64
	AutoTune bool
}

// New builds a move of the given kind over a model.
func New(kind string, m *graph.Model, cfg Config) (Move, error) {
	switch kind {
	case "scale":
		return NewScale(m, cfg)
	case "slide":
		return NewSlide(m, cfg)
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalid, kind)
}

// base carries the binding, counters and tuning state common to all moves.
type base struct {
	kind   string
	cfg    Config
	model  *graph.Model
	handle graph.Handle
	index  int // element index or nodeid.NoIndex

	tuning     float64
	minTuning  float64
	maxTuning  float64
	tried      int
	accepted   int
	sinceTried int
	sinceAcc   int
}

func newBase(kind string, m *graph.Model, cfg Config, minTuning, maxTuning float64) (base, error) {
	if cfg.Weight <= 0 || math.IsNaN(cfg.Weight) || math.IsInf(cfg.Weight, 0) {
		return base{}, fmt.Errorf("%w: %s on %q: weight must be positive, got %v", ErrInvalid, kind, cfg.Target, cfg.Weight)
	}
	if cfg.Tuning <= 0 || math.IsNaN(cfg.Tuning) {
		return base{}, fmt.Errorf("%w: %s on %q: tuning must be positive, got %v", ErrInvalid, kind, cfg.Target, cfg.Tuning)
	}
	b := base{
		kind:      kind,
		cfg:       cfg,
		tuning:    min(max(cfg.Tuning, minTuning), maxTuning),
		minTuning: minTuning,
		maxTuning: maxTuning,
	}
	if err := b.bind(m); err != nil {
		return base{}, err
	}
	return b, nil
}

// bind resolves the target name in m.
func (b *base) bind(m *graph.Model) error {
	h, index, err := m.Lookup(b.cfg.Target)
	if err != nil {
		return fmt.Errorf("binding %s move: %w", b.kind, err)
	}
	n, _ := m.Node(h)
	if !n.IsStochastic() {
		return fmt.Errorf("binding %s move to %q (%s): %w", b.kind, b.cfg.Target, n.Kind(), graph.ErrKind)
	}
	if n.IsClamped() {
		return fmt.Errorf("binding %s move to %q: %w", b.kind, b.cfg.Target, graph.ErrClamped)
	}
	b.model = m
	b.handle = h
	b.index = index
	return nil
}

// rebind returns a copy of b bound to m.
func (b base) rebind(m *graph.Model) (base, error) {
	if err := b.bind(m); err != nil {
		return base{}, err
	}
	return b, nil
}

func (b *base) Name() string            { return b.kind }
func (b *base) ParamName() string       { return b.cfg.Target }
func (b *base) Weight() float64         { return b.cfg.Weight }
func (b *base) Targets() []graph.Handle { return []graph.Handle{b.handle} }
func (b *base) Tried() int              { return b.tried }
func (b *base) Accepted() int           { return b.accepted }

// TuningParameter returns the current step size.
func (b *base) TuningParameter() float64 { return b.tuning }

func (b *base) proposed() {
	b.tried++
	b.sinceTried++
}

func (b *base) Accept() {
	b.accepted++
	b.sinceAcc++
	metrics.MoveProposals.WithLabelValues(b.label(), metrics.Accepted).Inc()
}

func (b *base) Reject() {
	metrics.MoveProposals.WithLabelValues(b.label(), metrics.Rejected).Inc()
}

func (b *base) label() string {
	return b.kind + "(" + b.cfg.Target + ")"
}

func (b *base) ResetCounters() {
	b.tried, b.accepted = 0, 0
	b.sinceTried, b.sinceAcc = 0, 0
}

func (b *base) Tune() {
	if !b.cfg.AutoTune || b.sinceTried == 0 {
		return
	}
	rate := float64(b.sinceAcc) / float64(b.sinceTried)
	b.tuning = tune(b.tuning, rate, b.minTuning, b.maxTuning)
	b.sinceTried, b.sinceAcc = 0, 0
}

// tune grows the step when too many proposals are accepted and shrinks it
// when too few are, then clamps it to [lo, hi].
func tune(lambda, rate, lo, hi float64) float64 {
	if rate > TargetAcceptance {
		lambda *= 1 + (rate-TargetAcceptance)/(1-TargetAcceptance)
	} else {
		lambda /= 2 - rate/TargetAcceptance
	}
	return min(max(lambda, lo), hi)
}

// current returns the values the move operates on: the addressed element or
// the whole vector.
func (b *base) current() (graph.Value, error) {
	v, err := b.model.Value(b.handle)
	if err != nil {
		return nil, err
	}
	if b.index >= 0 {
		return graph.Value{v[b.index]}, nil
	}
	return v, nil
}

// set writes back values obtained from current.
func (b *base) set(v graph.Value) error {
	if b.index >= 0 {
		return b.model.SetElement(b.handle, b.index, v[0])
	}
	return b.model.SetValue(b.handle, v)
}
