package memory

import (
	"context"
	"sync"

	"aster/internal/engine/ports"
)

// EventLog is an in-memory, append-only ports.EventSink. Events for a
// task are totally ordered by assignment of a per-task sequence number
// under the store lock; replay never reorders.
type EventLog struct {
	mu     sync.RWMutex
	events map[string][]ports.SequencedEvent
}

// NewEventLog constructs an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{events: make(map[string][]ports.SequencedEvent)}
}

func (l *EventLog) Append(_ context.Context, event ports.ExecutionEvent) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	taskID := event.GetTaskID()
	seq := uint64(len(l.events[taskID]) + 1)
	l.events[taskID] = append(l.events[taskID], ports.SequencedEvent{Seq: seq, Event: event})
	return seq, nil
}

func (l *EventLog) Replay(_ context.Context, taskID string) ([]ports.SequencedEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	events := l.events[taskID]
	out := make([]ports.SequencedEvent, len(events))
	copy(out, events)
	return out, nil
}
