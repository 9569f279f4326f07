package ports

import (
	"context"
	"encoding/json"
	"time"
)

// Event categories used to route the execution trace to consumers.
const (
	CategoryLifecycle = "lifecycle"
	CategoryModel     = "model"
	CategoryTool      = "tool"
	CategoryArtifact  = "artifact"
	CategoryGoal      = "goal"
	CategoryHITL      = "hitl"
	CategoryError     = "error"
)

// ExecutionEvent is an immutable record of something that happened while
// executing a task. Events carry the correlation id of the step that
// produced them.
type ExecutionEvent interface {
	EventType() string
	Category() string
	OccurredAt() time.Time
	GetTaskID() string
	GetCorrelationID() string
}

// SequencedEvent is an execution event with its position in the per-task
// total order assigned by the sink.
type SequencedEvent struct {
	Seq   uint64
	Event ExecutionEvent
}

// EventSink is the durable, ordered, append-only event log for tasks.
// Appends for a given task are totally ordered and never reordered on
// replay.
type EventSink interface {
	// Append stores the event and returns its per-task sequence number.
	Append(ctx context.Context, event ExecutionEvent) (uint64, error)

	// Replay returns every event recorded for the task, in order.
	Replay(ctx context.Context, taskID string) ([]SequencedEvent, error)
}

// EventRecord is an event restored from durable storage. The concrete
// event type is gone after a restart; the record keeps the envelope
// fields plus the original payload for inspection.
type EventRecord struct {
	Type          string          `json:"type"`
	EventCategory string          `json:"category"`
	TaskID        string          `json:"task_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	At            time.Time       `json:"at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

func (r *EventRecord) EventType() string        { return r.Type }
func (r *EventRecord) Category() string         { return r.EventCategory }
func (r *EventRecord) OccurredAt() time.Time    { return r.At }
func (r *EventRecord) GetTaskID() string        { return r.TaskID }
func (r *EventRecord) GetCorrelationID() string { return r.CorrelationID }

// EventListener consumes live execution events.
type EventListener interface {
	OnEvent(event SequencedEvent)
}

// EventListenerFunc is a function adapter for EventListener.
type EventListenerFunc func(SequencedEvent)

func (f EventListenerFunc) OnEvent(event SequencedEvent) {
	f(event)
}
