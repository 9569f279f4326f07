package engine

import (
	"context"
	"testing"
	"time"

	"aster/internal/logging"
	"aster/internal/store/memory"
)

func statusEvent(taskID string, seq int) *StepStartEvent {
	return &StepStartEvent{
		BaseEvent: newBaseEvent(taskID, "", "step", time.Now()),
		Seq:       seq,
	}
}

func TestEmitterAppendsAndFansOut(t *testing.T) {
	sink := memory.NewEventLog()
	emitter := NewEmitter(sink, logging.Nop(), nil)
	ctx := context.Background()

	feed, cancel := emitter.Subscribe("t1")
	defer cancel()

	for i := 1; i <= 3; i++ {
		emitter.Emit(ctx, statusEvent("t1", i))
	}
	// Another task's event never reaches this feed.
	emitter.Emit(ctx, statusEvent("t2", 1))

	for i := 1; i <= 3; i++ {
		select {
		case got := <-feed:
			if got.Seq != uint64(i) {
				t.Fatalf("expected seq %d, got %d", i, got.Seq)
			}
			if got.Event.GetTaskID() != "t1" {
				t.Fatalf("wrong task on feed: %s", got.Event.GetTaskID())
			}
		case <-time.After(time.Second):
			t.Fatalf("event %d never delivered", i)
		}
	}
	select {
	case got := <-feed:
		t.Fatalf("unexpected event on feed: %+v", got)
	default:
	}

	// The durable log holds everything regardless of subscribers.
	events, err := emitter.Replay(ctx, "t1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("log has %d events, want 3", len(events))
	}
}

func TestEmitterDropsForLaggingSubscriberButKeepsLog(t *testing.T) {
	sink := memory.NewEventLog()
	emitter := NewEmitter(sink, logging.Nop(), nil)
	ctx := context.Background()

	feed, cancel := emitter.Subscribe("t1")
	defer cancel()

	// Nobody reads the feed; overflow past the buffer must not block Emit.
	total := defaultSubscriberBuffer + 10
	done := make(chan struct{})
	go func() {
		for i := 1; i <= total; i++ {
			emitter.Emit(ctx, statusEvent("t1", i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Emit blocked on a lagging subscriber")
	}

	if got := len(feed); got != defaultSubscriberBuffer {
		t.Fatalf("channel holds %d events, want the buffer size %d", got, defaultSubscriberBuffer)
	}
	events, _ := emitter.Replay(ctx, "t1")
	if len(events) != total {
		t.Fatalf("durable log lost events: %d of %d", len(events), total)
	}
}

func TestEmitterCancelClosesChannel(t *testing.T) {
	emitter := NewEmitter(memory.NewEventLog(), logging.Nop(), nil)

	feed, cancel := emitter.Subscribe("t1")
	cancel()
	// Idempotent.
	cancel()

	if _, open := <-feed; open {
		t.Fatal("channel should be closed after cancel")
	}

	// Emitting after cancel must not panic or deliver.
	emitter.Emit(context.Background(), statusEvent("t1", 1))
}
