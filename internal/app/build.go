package app

import (
	"fmt"

	"github.com/specialistvlad/burstmc/internal/builtin"
	"github.com/specialistvlad/burstmc/internal/config"
	"github.com/specialistvlad/burstmc/internal/graph"
	"github.com/specialistvlad/burstmc/internal/mc3"
	"github.com/specialistvlad/burstmc/internal/mcmc"
	"github.com/specialistvlad/burstmc/internal/monitor"
	"github.com/specialistvlad/burstmc/internal/move"
	"github.com/specialistvlad/burstmc/internal/session"
)

// buildSession assembles the model, moves, monitors and chains described by
// the analysis.
func (a *App) buildSession() (session.Session, error) {
	an := a.analysis

	m, err := builtin.Build(an.Analysis.Model, an.Analysis.Data)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Model built.", "model", an.Analysis.Model, "nodes", m.Len())

	moves, err := buildMoves(m, an.Moves)
	if err != nil {
		return nil, err
	}

	sampler, err := mcmc.New(m, moves, a.buildMonitors(an.Monitors), mcmc.Config{
		Heat:     an.Sampler.Heat,
		Active:   an.Sampler.Active,
		Seed:     an.Analysis.Seed,
		Schedule: an.Sampler.Schedule,
		Retry:    mcmc.RetryPolicy{MaxAttempts: an.Sampler.MaxInitAttempts},
	})
	if err != nil {
		return nil, fmt.Errorf("building sampler: %w", err)
	}

	var population *mc3.Config
	if p := an.MC3; p != nil {
		population = &mc3.Config{
			Chains:       p.Chains,
			Processors:   p.Processors,
			SwapInterval: p.SwapInterval,
			DeltaHeat:    p.DeltaHeat,
			Swaps:        p.Swaps,
			Seed:         an.Analysis.Seed,
		}
	}
	return session.New(sampler, population)
}

func buildMoves(m *graph.Model, cfgs []config.Move) ([]move.Move, error) {
	moves := make([]move.Move, 0, len(cfgs))
	for _, c := range cfgs {
		mv, err := move.New(c.Kind, m, move.Config{
			Target:   c.Target,
			Weight:   c.Weight,
			Tuning:   c.Tuning,
			AutoTune: c.AutoTune,
		})
		if err != nil {
			return nil, fmt.Errorf("move %s on %q: %w", c.Kind, c.Target, err)
		}
		moves = append(moves, mv)
	}
	return moves, nil
}

// buildMonitors creates the configured monitors. Trace monitors are also
// kept on the App so their summaries can be printed after the run.
func (a *App) buildMonitors(cfgs []config.Monitor) []mcmc.Monitor {
	monitors := make([]mcmc.Monitor, 0, len(cfgs))
	for _, c := range cfgs {
		switch c.Kind {
		case config.MonitorScreen:
			monitors = append(monitors, monitor.NewScreen(a.logger, c.Every, c.Nodes))
		case config.MonitorFile:
			monitors = append(monitors, monitor.NewFile(c.Path, c.Every, c.Nodes))
		case config.MonitorTrace:
			tr := monitor.NewTrace(c.Every, c.Nodes)
			a.traces = append(a.traces, tr)
			monitors = append(monitors, tr)
		case config.MonitorStream:
			monitors = append(monitors, monitor.NewStream(a.logger, monitor.StreamConfig{
				URL:                c.URL,
				Namespace:          c.Namespace,
				Event:              c.Event,
				InsecureSkipVerify: c.InsecureSkipVerify,
			}, c.Every, c.Nodes, a.dial))
		}
	}
	return monitors
}
