package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
)

type stubRunner struct {
	mu      sync.Mutex
	active  int32
	peak    int32
	delay   time.Duration
	results map[string]*ports.TaskResult
	errs    map[string]error
}

func (r *stubRunner) Run(_ context.Context, taskID string) (*ports.TaskResult, error) {
	current := atomic.AddInt32(&r.active, 1)
	defer atomic.AddInt32(&r.active, -1)
	for {
		peak := atomic.LoadInt32(&r.peak)
		if current <= peak || atomic.CompareAndSwapInt32(&r.peak, peak, current) {
			break
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errs[taskID]; ok {
		return nil, err
	}
	if result, ok := r.results[taskID]; ok {
		return result, nil
	}
	return &ports.TaskResult{TaskID: taskID, Status: ports.TaskCompleted}, nil
}

func TestRunBatchReturnsOrderedOutcomes(t *testing.T) {
	runner := &stubRunner{
		errs: map[string]error{
			"b": &xerrors.ConflictError{Resource: "conversation run-slot"},
			"c": errors.New("exploded"),
		},
	}
	s := New(runner, nil, 2)

	outcomes := s.RunBatch(context.Background(), []string{"c", "a", "b"})
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for i, want := range []string{"a", "b", "c"} {
		if outcomes[i].TaskID != want {
			t.Fatalf("outcomes not sorted: %+v", outcomes)
		}
	}

	if outcomes[0].Err != nil || outcomes[0].Result == nil {
		t.Errorf("task a should succeed: %+v", outcomes[0])
	}
	// Run-slot conflicts surface as per-task outcomes, not batch failures.
	if !xerrors.IsConflict(outcomes[1].Err) {
		t.Errorf("task b should carry the conflict: %v", outcomes[1].Err)
	}
	if outcomes[2].Err == nil {
		t.Errorf("task c should carry the failure: %+v", outcomes[2])
	}
}

func TestRunBatchHonorsConcurrencyBound(t *testing.T) {
	runner := &stubRunner{delay: 30 * time.Millisecond}
	s := New(runner, nil, 2)

	ids := []string{"t1", "t2", "t3", "t4", "t5", "t6"}
	outcomes := s.RunBatch(context.Background(), ids)
	if len(outcomes) != len(ids) {
		t.Fatalf("expected %d outcomes, got %d", len(ids), len(outcomes))
	}
	if peak := atomic.LoadInt32(&runner.peak); peak > 2 {
		t.Fatalf("concurrency bound exceeded: peak %d", peak)
	}
}

func TestRunBatchEmpty(t *testing.T) {
	s := New(&stubRunner{}, nil, 0)
	if outcomes := s.RunBatch(context.Background(), nil); len(outcomes) != 0 {
		t.Fatalf("empty batch produced outcomes: %+v", outcomes)
	}
}
