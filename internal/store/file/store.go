// Package file persists engine state as a single JSON document, written
// atomically on every mutation. It backs single-node deployments where a
// suspended task must survive a process restart; heavier deployments swap
// in a relational implementation of the same ports.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
)

// Store implements ports.TaskStore, ports.HITLStore and ports.EventSink
// over one JSON state file.
type Store struct {
	mu    sync.Mutex
	path  string
	state state
}

type state struct {
	Tasks      map[string]*ports.AgentTask    `json:"tasks"`
	Steps      map[string][]ports.TaskStep    `json:"steps"`
	Snapshots  map[string]*ports.TaskSnapshot `json:"snapshots"`
	Artifacts  map[string][]ports.ToolArtifact `json:"artifacts"`
	RunSlots   map[string]string              `json:"run_slots"`
	HITL       map[string]*ports.HITLRequest  `json:"hitl"`
	HITLByTask map[string][]string            `json:"hitl_by_task"`
	Events     map[string][]eventRecord       `json:"events"`
}

type eventRecord struct {
	Seq           uint64          `json:"seq"`
	Type          string          `json:"type"`
	Category      string          `json:"category"`
	TaskID        string          `json:"task_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	At            time.Time       `json:"at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Open loads the store at path, creating an empty one when the file does
// not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	s.state = emptyState()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.state); err != nil {
			return nil, fmt.Errorf("parse state file: %w", err)
		}
		s.ensureMaps()
	}
	return s, nil
}

func emptyState() state {
	return state{
		Tasks:      make(map[string]*ports.AgentTask),
		Steps:      make(map[string][]ports.TaskStep),
		Snapshots:  make(map[string]*ports.TaskSnapshot),
		Artifacts:  make(map[string][]ports.ToolArtifact),
		RunSlots:   make(map[string]string),
		HITL:       make(map[string]*ports.HITLRequest),
		HITLByTask: make(map[string][]string),
		Events:     make(map[string][]eventRecord),
	}
}

func (s *Store) ensureMaps() {
	fresh := emptyState()
	if s.state.Tasks == nil {
		s.state.Tasks = fresh.Tasks
	}
	if s.state.Steps == nil {
		s.state.Steps = fresh.Steps
	}
	if s.state.Snapshots == nil {
		s.state.Snapshots = fresh.Snapshots
	}
	if s.state.Artifacts == nil {
		s.state.Artifacts = fresh.Artifacts
	}
	if s.state.RunSlots == nil {
		s.state.RunSlots = fresh.RunSlots
	}
	if s.state.HITL == nil {
		s.state.HITL = fresh.HITL
	}
	if s.state.HITLByTask == nil {
		s.state.HITLByTask = fresh.HITLByTask
	}
	if s.state.Events == nil {
		s.state.Events = fresh.Events
	}
}

// persist writes the whole state atomically. Called with the lock held.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(&s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// --- ports.TaskStore ---

func (s *Store) CreateTask(_ context.Context, task *ports.AgentTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.state.Tasks[task.ID]; exists {
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
	s.state.Tasks[task.ID] = &stored
	return s.persist()
}

func (s *Store) GetTask(_ context.Context, taskID string) (*ports.AgentTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.state.Tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task not found: %s", taskID)
	}
	copied := *task
	return &copied, nil
}

func (s *Store) UpdateStatus(_ context.Context, taskID string, to ports.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.state.Tasks[taskID]
	if !ok {
		return fmt.Errorf("task not found: %s", taskID)
	}
	if !task.Status.CanTransition(to) {
		return fmt.Errorf("illegal status transition %s -> %s for task %s", task.Status, to, taskID)
	}
	task.Status = to
	task.UpdatedAt = time.Now()
	return s.persist()
}

func (s *Store) ClaimRun(_ context.Context, conversationID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	holder, held := s.state.RunSlots[conversationID]
	if held && holder != taskID {
		return &xerrors.ConflictError{
			Resource: "conversation run-slot",
			Detail:   fmt.Sprintf("conversation %s is already running task %s", conversationID, holder),
		}
	}
	s.state.RunSlots[conversationID] = taskID
	return s.persist()
}

func (s *Store) ReleaseRun(_ context.Context, conversationID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.RunSlots[conversationID] == taskID {
		delete(s.state.RunSlots, conversationID)
		return s.persist()
	}
	return nil
}

func (s *Store) AppendStep(_ context.Context, step *ports.TaskStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.state.Steps[step.TaskID]
	if want := len(existing) + 1; step.Seq != want {
		return fmt.Errorf("step sequence gap for task %s: got %d, want %d", step.TaskID, step.Seq, want)
	}
	s.state.Steps[step.TaskID] = append(existing, *step)
	return s.persist()
}

func (s *Store) ListSteps(_ context.Context, taskID string) ([]ports.TaskStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	steps := s.state.Steps[taskID]
	out := make([]ports.TaskStep, len(steps))
	copy(out, steps)
	return out, nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap *ports.TaskSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *snap
	copied.Messages = make([]ports.Message, len(snap.Messages))
	copy(copied.Messages, snap.Messages)
	s.state.Snapshots[snap.TaskID] = &copied
	return s.persist()
}

func (s *Store) LoadSnapshot(_ context.Context, taskID string) (*ports.TaskSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.state.Snapshots[taskID]
	if !ok {
		return nil, fmt.Errorf("snapshot not found for task: %s", taskID)
	}
	copied := *snap
	copied.Messages = make([]ports.Message, len(snap.Messages))
	copy(copied.Messages, snap.Messages)
	return &copied, nil
}

func (s *Store) SaveArtifact(_ context.Context, artifact *ports.ToolArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Artifacts[artifact.TaskID] = append(s.state.Artifacts[artifact.TaskID], *artifact)
	return s.persist()
}

func (s *Store) ListArtifacts(_ context.Context, taskID string) ([]ports.ToolArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	artifacts := s.state.Artifacts[taskID]
	out := make([]ports.ToolArtifact, len(artifacts))
	copy(out, artifacts)
	return out, nil
}

// --- ports.HITLStore ---

func (s *Store) Create(_ context.Context, req *ports.HITLRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.state.HITL[req.ID]; exists {
		return &xerrors.ConflictError{Resource: "hitl request", Detail: "already exists: " + req.ID}
	}
	for _, id := range s.state.HITLByTask[req.TaskID] {
		if s.state.HITL[id].Status.Open() {
			return &xerrors.ConflictError{
				Resource: "hitl request",
				Detail:   fmt.Sprintf("task %s already has open request %s", req.TaskID, id),
			}
		}
	}
	if req.Status == "" {
		req.Status = ports.HITLPending
	}
	now := time.Now()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	stored := *req
	s.state.HITL[req.ID] = &stored
	s.state.HITLByTask[req.TaskID] = append(s.state.HITLByTask[req.TaskID], req.ID)
	return s.persist()
}

func (s *Store) Get(_ context.Context, requestID string) (*ports.HITLRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.state.HITL[requestID]
	if !ok {
		return nil, fmt.Errorf("hitl request not found: %s", requestID)
	}
	copied := *req
	return &copied, nil
}

func (s *Store) OpenForTask(_ context.Context, taskID string) (*ports.HITLRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.state.HITLByTask[taskID] {
		if req := s.state.HITL[id]; req.Status.Open() {
			copied := *req
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *Store) Transition(_ context.Context, requestID string, from []ports.HITLStatus, to ports.HITLStatus, answer string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.state.HITL[requestID]
	if !ok {
		return false, fmt.Errorf("hitl request not found: %s", requestID)
	}
	matched := false
	for _, status := range from {
		if req.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	req.Status = to
	if answer != "" {
		req.Answer = answer
	}
	req.UpdatedAt = time.Now()
	return true, s.persist()
}

// --- ports.EventSink ---

func (s *Store) Append(_ context.Context, event ports.ExecutionEvent) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(event)
	if err != nil {
		payload = nil
	}
	taskID := event.GetTaskID()
	seq := uint64(len(s.state.Events[taskID]) + 1)
	s.state.Events[taskID] = append(s.state.Events[taskID], eventRecord{
		Seq:           seq,
		Type:          event.EventType(),
		Category:      event.Category(),
		TaskID:        taskID,
		CorrelationID: event.GetCorrelationID(),
		At:            event.OccurredAt(),
		Payload:       payload,
	})
	if err := s.persist(); err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *Store) Replay(_ context.Context, taskID string) ([]ports.SequencedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.state.Events[taskID]
	out := make([]ports.SequencedEvent, 0, len(records))
	for _, r := range records {
		out = append(out, ports.SequencedEvent{
			Seq: r.Seq,
			Event: &ports.EventRecord{
				Type:          r.Type,
				EventCategory: r.Category,
				TaskID:        r.TaskID,
				CorrelationID: r.CorrelationID,
				At:            r.At,
				Payload:       r.Payload,
			},
		})
	}
	return out, nil
}
