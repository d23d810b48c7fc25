// Package executor runs batches of independent tasks on a bounded pool of
// workers. The MC3 coordinator uses it to advance its chains in parallel.
package executor

import "context"

// Task is one unit of work. Tasks of a batch must not share mutable state.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Executor runs a batch of tasks and returns once all of them finished.
type Executor interface {
	Execute(ctx context.Context, tasks []Task) error
}
