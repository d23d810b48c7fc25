package executor

import (
	"context"
	"fmt"

	"github.com/specialistvlad/burstmc/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// Pool is an Executor with at most Workers tasks in flight.
type Pool struct {
	workers int
}

var _ Executor = (*Pool)(nil)

// NewPool returns a pool of the given size; sizes below one mean one worker.
func NewPool(workers int) *Pool {
	return &Pool{workers: max(workers, 1)}
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Execute runs every task and waits for all of them. The first failure
// cancels the context handed to the remaining tasks; tasks not yet started
// are skipped. The returned error names the failed task.
func (p *Pool) Execute(ctx context.Context, tasks []Task) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, task := range tasks {
		g.Go(func() error {
			tctx, logger := ctxlog.With(gctx, "task", task.Name)
			if err := tctx.Err(); err != nil {
				logger.Debug("Skipping task, batch cancelled.")
				return err
			}
			logger.Debug("Worker picked up task.")
			if err := task.Run(tctx); err != nil {
				logger.Error("Task failed.", "error", err)
				return fmt.Errorf("task %s: %w", task.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
