package config

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalid is returned when a configuration value is out of range.
var ErrInvalid = errors.New("invalid configuration")

// Monitor kinds.
const (
	MonitorScreen = "screen"
	MonitorFile   = "file"
	MonitorTrace  = "trace"
	MonitorStream = "stream"
)

var (
	scheduleKinds = []string{"random", "sequential", "single"}
	moveKinds     = []string{"scale", "slide"}
	monitorKinds  = []string{MonitorScreen, MonitorFile, MonitorTrace, MonitorStream}
)

// Config is a complete, validated analysis.
type Config struct {
	Analysis Analysis
	Sampler  Sampler
	Moves    []Move
	Monitors []Monitor
	// MC3 is nil when the analysis runs a single chain.
	MC3 *MC3
}

// Analysis selects the model and the data it is conditioned on.
type Analysis struct {
	Model string
	Seed  uint64
	Data  []float64
}

// Sampler holds the chain settings.
type Sampler struct {
	Schedule        string
	Heat            float64
	Active          bool
	Burnin          int
	Generations     int
	TuningInterval  int
	MaxInitAttempts int
}

// Move is one proposal mechanism bound to a named node.
type Move struct {
	Kind     string
	Target   string
	Weight   float64
	Tuning   float64
	AutoTune bool
}

// Monitor is one output of the chain.
type Monitor struct {
	Kind  string
	Every int
	Nodes []string

	// Path is the output file of a file monitor.
	Path string

	// Stream monitor settings.
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
}

// MC3 holds the parallel tempering settings.
type MC3 struct {
	Chains       int
	Processors   int
	SwapInterval int
	DeltaHeat    float64
	Swaps        int
}

// Validate checks every value and returns the first problem, wrapped with
// ErrInvalid and the offending attribute.
func (c *Config) Validate() error {
	if c.Analysis.Model == "" {
		return invalid("analysis.model", "must be set")
	}

	s := c.Sampler
	switch {
	case !slices.Contains(scheduleKinds, s.Schedule):
		return invalid("sampler.schedule", fmt.Sprintf("unknown schedule %q", s.Schedule))
	case !(s.Heat > 0 && s.Heat <= 1):
		return invalid("sampler.heat", fmt.Sprintf("must be in (0, 1], got %v", s.Heat))
	case s.Burnin < 0:
		return invalid("sampler.burnin", "must not be negative")
	case s.Generations < 1:
		return invalid("sampler.generations", "must be positive")
	case s.TuningInterval < 0:
		return invalid("sampler.tuning_interval", "must not be negative")
	case s.MaxInitAttempts < 1:
		return invalid("sampler.max_init_attempts", "must be positive")
	}

	if len(c.Moves) == 0 {
		return invalid("move", "at least one move is required")
	}
	for _, m := range c.Moves {
		attr := fmt.Sprintf("move.%s.%s", m.Kind, m.Target)
		switch {
		case !slices.Contains(moveKinds, m.Kind):
			return invalid(attr, fmt.Sprintf("unknown move kind %q", m.Kind))
		case !(m.Weight > 0):
			return invalid(attr+".weight", "must be positive")
		case !(m.Tuning > 0):
			return invalid(attr+".tuning", "must be positive")
		}
	}

	for _, m := range c.Monitors {
		attr := "monitor." + m.Kind
		switch {
		case !slices.Contains(monitorKinds, m.Kind):
			return invalid(attr, fmt.Sprintf("unknown monitor kind %q", m.Kind))
		case m.Every < 1:
			return invalid(attr+".every", "must be positive")
		case m.Kind == MonitorFile && m.Path == "":
			return invalid(attr+".path", "must be set")
		case m.Kind == MonitorStream && m.URL == "":
			return invalid(attr+".url", "must be set")
		}
	}

	if mc := c.MC3; mc != nil {
		switch {
		case mc.Chains < 1:
			return invalid("mc3.chains", "must be positive")
		case mc.Processors < 1:
			return invalid("mc3.processors", "must be positive")
		case mc.SwapInterval < 1:
			return invalid("mc3.swap_interval", "must be positive")
		case !(mc.DeltaHeat >= 0):
			return invalid("mc3.delta_heat", "must not be negative")
		case mc.Swaps < 0:
			return invalid("mc3.swaps", "must not be negative")
		}
	}
	return nil
}

func invalid(attr, msg string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalid, attr, msg)
}
