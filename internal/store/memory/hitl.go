package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
)

// HITLStore is an in-memory ports.HITLStore enforcing the one-open-request
// invariant per task.
type HITLStore struct {
	mu       sync.RWMutex
	requests map[string]*ports.HITLRequest
	byTask   map[string][]string
}

// NewHITLStore constructs an empty HITL request store.
func NewHITLStore() *HITLStore {
	return &HITLStore{
		requests: make(map[string]*ports.HITLRequest),
		byTask:   make(map[string][]string),
	}
}

func (s *HITLStore) Create(_ context.Context, req *ports.HITLRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return &xerrors.ConflictError{Resource: "hitl request", Detail: "already exists: " + req.ID}
	}
	for _, id := range s.byTask[req.TaskID] {
		if s.requests[id].Status.Open() {
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
	s.requests[req.ID] = &stored
	s.byTask[req.TaskID] = append(s.byTask[req.TaskID], req.ID)
	return nil
}

func (s *HITLStore) Get(_ context.Context, requestID string) (*ports.HITLRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("hitl request not found: %s", requestID)
	}
	copied := *req
	return &copied, nil
}

func (s *HITLStore) OpenForTask(_ context.Context, taskID string) (*ports.HITLRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.byTask[taskID] {
		if req := s.requests[id]; req.Status.Open() {
			copied := *req
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *HITLStore) Transition(_ context.Context, requestID string, from []ports.HITLStatus, to ports.HITLStatus, answer string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
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
	return true, nil
}
