package engine

import (
	"context"
	"sync"

	"aster/internal/engine/ports"
	"aster/internal/logging"
	"aster/internal/metrics"
)

const defaultSubscriberBuffer = 64

// Emitter appends execution events to the durable per-task log and fans
// them out to live subscribers. Appends for one task are serialized, so
// the log order matches emission order.
type Emitter struct {
	sink    ports.EventSink
	logger  ports.Logger
	metrics *metrics.Metrics

	mu   sync.RWMutex
	subs map[string]map[int]chan ports.SequencedEvent
	next int
}

// NewEmitter constructs an Emitter on top of a durable sink.
func NewEmitter(sink ports.EventSink, logger ports.Logger, m *metrics.Metrics) *Emitter {
	if logger == nil {
		logger = logging.NewComponentLogger("Emitter")
	}
	return &Emitter{
		sink:    sink,
		logger:  logger,
		metrics: m,
		subs:    make(map[string]map[int]chan ports.SequencedEvent),
	}
}

// Emit appends the event and delivers it to every live subscriber of the
// task. Delivery is non-blocking: a subscriber that cannot keep up has the
// event dropped from its channel, never from the durable log.
func (e *Emitter) Emit(ctx context.Context, event ports.ExecutionEvent) {
	seq, err := e.sink.Append(ctx, event)
	if err != nil {
		e.logger.Error("Failed to append event type=%s task=%s: %v", event.EventType(), event.GetTaskID(), err)
		return
	}
	if e.metrics != nil {
		e.metrics.EventEmitted(event.Category())
	}

	sequenced := ports.SequencedEvent{Seq: seq, Event: event}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for id, ch := range e.subs[event.GetTaskID()] {
		select {
		case ch <- sequenced:
		default:
			e.logger.Warn("Subscriber %d for task %s is lagging, dropping event seq=%d", id, event.GetTaskID(), seq)
		}
	}
}

// Subscribe returns a live feed of events for one task plus a cancel
// function. The channel is closed on cancel.
func (e *Emitter) Subscribe(taskID string) (<-chan ports.SequencedEvent, func()) {
	ch := make(chan ports.SequencedEvent, defaultSubscriberBuffer)

	e.mu.Lock()
	if e.subs[taskID] == nil {
		e.subs[taskID] = make(map[int]chan ports.SequencedEvent)
	}
	id := e.next
	e.next++
	e.subs[taskID][id] = ch
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[taskID][id]; ok {
			delete(e.subs[taskID], id)
			if len(e.subs[taskID]) == 0 {
				delete(e.subs, taskID)
			}
			close(sub)
		}
	}
	return ch, cancel
}

// Replay returns the authoritative ordered event log for a task.
func (e *Emitter) Replay(ctx context.Context, taskID string) ([]ports.SequencedEvent, error) {
	return e.sink.Replay(ctx, taskID)
}
