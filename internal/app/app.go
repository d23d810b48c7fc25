package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/burstmc/internal/config"
	"github.com/specialistvlad/burstmc/internal/ctxlog"
	"github.com/specialistvlad/burstmc/internal/monitor"
	"github.com/specialistvlad/burstmc/internal/session"
)

// Option customizes an App.
type Option func(*App)

// WithDialer replaces the socket.io connection used by stream monitors.
func WithDialer(dial monitor.Dialer) Option {
	return func(a *App) { a.dial = dial }
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	ctx      context.Context
	logger   *slog.Logger
	config   *Config
	analysis *config.Config
	runID    string
	dial     monitor.Dialer

	httpServer *http.Server

	mu      sync.RWMutex
	session session.Session
	traces  []*monitor.Trace
}

// NewApp is the constructor for the main application. It loads and validates
// the analysis; a failure to do so is a fatal startup error and panics.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) *App {
	runID := uuid.NewString()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW, runID)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	analysis, err := config.Load(ctx, cfg.ConfigPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	if cfg.Seed != nil {
		analysis.Analysis.Seed = *cfg.Seed
	}
	if analysis.MC3 != nil && cfg.WorkerCount > 0 {
		analysis.MC3.Processors = cfg.WorkerCount
	}
	logger.Debug("Analysis loaded.", "model", analysis.Analysis.Model, "seed", analysis.Analysis.Seed)

	a := &App{
		outW:     outW,
		ctx:      ctx,
		logger:   logger,
		config:   cfg,
		analysis: analysis,
		runID:    runID,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunID returns the identifier attached to every log record of this run.
func (a *App) RunID() string { return a.runID }

// Analysis returns the loaded analysis.
func (a *App) Analysis() *config.Config { return a.analysis }

func (a *App) currentSession() session.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}
