package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/burstmc/internal/ctxlog"
)

// Run executes the analysis: initialize, burn in, sample, then print the
// summaries to the app's output.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer func() {
		err = errors.Join(err, a.closeHealthCheckServer())
	}()

	sess, err := a.buildSession()
	if err != nil {
		return fmt.Errorf("failed to build analysis: %w", err)
	}
	a.mu.Lock()
	a.session = sess
	a.mu.Unlock()
	defer func() {
		err = errors.Join(err, sess.Close())
	}()

	s := a.analysis.Sampler
	a.logger.Info("🚀 Starting analysis.", "model", a.analysis.Analysis.Model, "chains", len(sess.Status()), "burnin", s.Burnin, "generations", s.Generations)

	if err := sess.Initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if s.Burnin > 0 {
		if err := sess.Burnin(ctx, s.Burnin, s.TuningInterval); err != nil {
			return fmt.Errorf("burn-in failed: %w", err)
		}
		a.logger.Info("Burn-in finished.", "generations", s.Burnin)
	}
	if err := sess.Run(ctx, s.Generations); err != nil {
		return fmt.Errorf("sampling failed: %w", err)
	}
	a.logger.Info("🏁 Analysis finished.", "generations", s.Generations)

	if err := a.writeSummaries(); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

func (a *App) writeSummaries() error {
	fmt.Fprintln(a.outW)
	if err := a.currentSession().WriteSummary(a.outW); err != nil {
		return err
	}
	for _, tr := range a.traces {
		fmt.Fprintln(a.outW)
		if err := tr.WriteSummary(a.outW, 0); err != nil {
			return err
		}
	}
	return nil
}
