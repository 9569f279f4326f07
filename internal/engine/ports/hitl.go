package ports

import (
	"context"
	"time"
)

// HITLStatus enumerates the human-in-the-loop request state machine:
// pending -> processing -> {answered, timeout, cancelled}; answered ->
// completed once the answer has been folded back into task context.
type HITLStatus string

const (
	HITLPending    HITLStatus = "pending"
	HITLProcessing HITLStatus = "processing"
	HITLAnswered   HITLStatus = "answered"
	HITLCompleted  HITLStatus = "completed"
	HITLTimeout    HITLStatus = "timeout"
	HITLCancelled  HITLStatus = "cancelled"
)

// IsTerminal reports whether the request can change state again.
func (s HITLStatus) IsTerminal() bool {
	switch s {
	case HITLCompleted, HITLTimeout, HITLCancelled:
		return true
	}
	return false
}

// Open reports whether the request still counts against the one-in-flight
// limit per task.
func (s HITLStatus) Open() bool {
	return s == HITLPending || s == HITLProcessing
}

// HITLRequest is a pending question to a human.
type HITLRequest struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"task_id"`
	StepSeq   int        `json:"step_seq"`
	Prompt    string     `json:"prompt"`
	Status    HITLStatus `json:"status"`
	Answer    string     `json:"answer,omitempty"`
	Deadline  time.Time  `json:"deadline"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// HITLResolutionKind identifies how a pending request was settled.
type HITLResolutionKind string

const (
	HITLResolveAnswer  HITLResolutionKind = "answer"
	HITLResolveTimeout HITLResolutionKind = "timeout"
	HITLResolveCancel  HITLResolutionKind = "cancel"
)

// HITLResolution carries the external settlement of a request.
type HITLResolution struct {
	Kind   HITLResolutionKind `json:"kind"`
	Answer string             `json:"answer,omitempty"`
}

// Notifier publishes HITL traffic to an external notification channel.
// The engine never blocks on delivery.
type Notifier interface {
	PublishRequest(ctx context.Context, req HITLRequest) error
	PublishResolution(ctx context.Context, req HITLRequest) error
}
