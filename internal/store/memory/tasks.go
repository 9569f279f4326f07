// Package memory provides in-process store implementations for tests and
// single-node runs. The persistence layer swaps in relational
// implementations of the same ports.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
)

// TaskStore is an in-memory ports.TaskStore.
type TaskStore struct {
	mu        sync.RWMutex
	tasks     map[string]*ports.AgentTask
	steps     map[string][]ports.TaskStep
	snapshots map[string]*ports.TaskSnapshot
	artifacts map[string][]ports.ToolArtifact
	runSlots  map[string]string // conversation id -> task id holding the slot
}

// NewTaskStore constructs an empty task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks:     make(map[string]*ports.AgentTask),
		steps:     make(map[string][]ports.TaskStep),
		snapshots: make(map[string]*ports.TaskSnapshot),
		artifacts: make(map[string][]ports.ToolArtifact),
		runSlots:  make(map[string]string),
	}
}

func (s *TaskStore) CreateTask(_ context.Context, task *ports.AgentTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return &xerrors.ConflictError{Resource: "task", Detail: "already exists: " + task.ID}
	}
	if task.Status == "" {
		task.Status = ports.TaskPending
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	stored := *task
	s.tasks[task.ID] = &stored
	return nil
}

func (s *TaskStore) GetTask(_ context.Context, taskID string) (*ports.AgentTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task not found: %s", taskID)
	}
	copied := *task
	return &copied, nil
}

func (s *TaskStore) UpdateStatus(_ context.Context, taskID string, to ports.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task not found: %s", taskID)
	}
	if !task.Status.CanTransition(to) {
		return fmt.Errorf("illegal status transition %s -> %s for task %s", task.Status, to, taskID)
	}
	task.Status = to
	task.UpdatedAt = time.Now()
	return nil
}

func (s *TaskStore) ClaimRun(_ context.Context, conversationID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	holder, held := s.runSlots[conversationID]
	if held && holder != taskID {
		return &xerrors.ConflictError{
			Resource: "conversation run-slot",
			Detail:   fmt.Sprintf("conversation %s is already running task %s", conversationID, holder),
		}
	}
	s.runSlots[conversationID] = taskID
	return nil
}

func (s *TaskStore) ReleaseRun(_ context.Context, conversationID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runSlots[conversationID] == taskID {
		delete(s.runSlots, conversationID)
	}
	return nil
}

func (s *TaskStore) AppendStep(_ context.Context, step *ports.TaskStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.steps[step.TaskID]
	if want := len(existing) + 1; step.Seq != want {
		return fmt.Errorf("step sequence gap for task %s: got %d, want %d", step.TaskID, step.Seq, want)
	}
	s.steps[step.TaskID] = append(existing, *step)
	return nil
}

func (s *TaskStore) ListSteps(_ context.Context, taskID string) ([]ports.TaskStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	steps := s.steps[taskID]
	out := make([]ports.TaskStep, len(steps))
	copy(out, steps)
	return out, nil
}

func (s *TaskStore) SaveSnapshot(_ context.Context, snap *ports.TaskSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *snap
	copied.Messages = make([]ports.Message, len(snap.Messages))
	copy(copied.Messages, snap.Messages)
	s.snapshots[snap.TaskID] = &copied
	return nil
}

func (s *TaskStore) LoadSnapshot(_ context.Context, taskID string) (*ports.TaskSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[taskID]
	if !ok {
		return nil, fmt.Errorf("snapshot not found for task: %s", taskID)
	}
	copied := *snap
	copied.Messages = make([]ports.Message, len(snap.Messages))
	copy(copied.Messages, snap.Messages)
	return &copied, nil
}

func (s *TaskStore) SaveArtifact(_ context.Context, artifact *ports.ToolArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[artifact.TaskID] = append(s.artifacts[artifact.TaskID], *artifact)
	return nil
}

func (s *TaskStore) ListArtifacts(_ context.Context, taskID string) ([]ports.ToolArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	artifacts := s.artifacts[taskID]
	out := make([]ports.ToolArtifact, len(artifacts))
	copy(out, artifacts)
	return out, nil
}

// RunSlotHolder returns the task currently holding the conversation's
// run-slot, for tests and diagnostics.
func (s *TaskStore) RunSlotHolder(conversationID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	holder, ok := s.runSlots[conversationID]
	return holder, ok
}
