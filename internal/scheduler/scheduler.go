// Package scheduler fans pending tasks out to the engine under a global
// concurrency bound. Per-conversation exclusivity is the store's run-slot
// concern; the scheduler only limits how many loops run at once.
package scheduler

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
	"aster/internal/logging"
)

// DefaultConcurrency bounds simultaneous task loops.
const DefaultConcurrency = 4

// Runner executes one task to its next stopping point.
type Runner interface {
	Run(ctx context.Context, taskID string) (*ports.TaskResult, error)
}

// Outcome pairs a task with its run result or error.
type Outcome struct {
	TaskID string
	Result *ports.TaskResult
	Err    error
}

// Scheduler runs batches of tasks.
type Scheduler struct {
	runner      Runner
	logger      ports.Logger
	concurrency int64
}

// New constructs a scheduler over the runner.
func New(runner Runner, logger ports.Logger, concurrency int) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Scheduler{
		runner:      runner,
		logger:      logging.OrNop(logger),
		concurrency: int64(concurrency),
	}
}

// RunBatch executes the tasks concurrently and returns one outcome per
// task, ordered by task id. A run-slot conflict is an outcome, not a
// batch failure: the losing task stays pending for a later batch.
func (s *Scheduler) RunBatch(ctx context.Context, taskIDs []string) []Outcome {
	sem := semaphore.NewWeighted(s.concurrency)
	group, ctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	outcomes := make([]Outcome, 0, len(taskIDs))

	for _, taskID := range taskIDs {
		taskID := taskID
		group.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				outcomes = append(outcomes, Outcome{TaskID: taskID, Err: err})
				mu.Unlock()
				return nil
			}
			defer sem.Release(1)

			result, err := s.runner.Run(ctx, taskID)
			if err != nil && xerrors.IsConflict(err) {
				s.logger.Info("Task %s deferred: %v", taskID, err)
			} else if err != nil {
				s.logger.Error("Task %s run failed: %v", taskID, err)
			}

			mu.Lock()
			outcomes = append(outcomes, Outcome{TaskID: taskID, Result: result, Err: err})
			mu.Unlock()
			return nil
		})
	}

	_ = group.Wait()
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].TaskID < outcomes[j].TaskID })
	return outcomes
}
