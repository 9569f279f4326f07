package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"aster/internal/engine/ports"
	"aster/internal/logging"
	"aster/internal/metrics"
)

// DefaultHITLTimeout bounds how long a task waits for a human answer.
const DefaultHITLTimeout = 30 * time.Minute

// HITLGateway owns the human-in-the-loop request lifecycle. Requests are
// persisted state machine entries, not in-process waits: the asking task
// suspends and any process can later resolve the request. Resolution is
// idempotent; only the winning state transition folds the answer into the
// task snapshot and fires the resume callback.
type HITLGateway struct {
	store    ports.HITLStore
	tasks    ports.TaskStore
	emitter  *Emitter
	notifier ports.Notifier
	clock    ports.Clock
	logger   ports.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration

	// OnResolved is invoked after a request reaches a terminal state, with
	// the winning resolution. The processor registers its resume hook here.
	OnResolved func(req ports.HITLRequest, res ports.HITLResolution)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// HITLGatewayConfig wires a HITLGateway.
type HITLGatewayConfig struct {
	Store    ports.HITLStore
	Tasks    ports.TaskStore
	Emitter  *Emitter
	Notifier ports.Notifier
	Clock    ports.Clock
	Logger   ports.Logger
	Metrics  *metrics.Metrics
	Timeout  time.Duration
}

// NewHITLGateway constructs a gateway.
func NewHITLGateway(cfg HITLGatewayConfig) *HITLGateway {
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewComponentLogger("HITLGateway")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHITLTimeout
	}
	return &HITLGateway{
		store:    cfg.Store,
		tasks:    cfg.Tasks,
		emitter:  cfg.Emitter,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		timeout:  cfg.Timeout,
		timers:   make(map[string]*time.Timer),
	}
}

// Request opens a pending request for the task and returns immediately.
// The store rejects a second open request for the same task. A deadline
// timer resolves the request as timed out if no human answers in time.
func (g *HITLGateway) Request(ctx context.Context, taskID string, stepSeq int, prompt, correlationID string) (*ports.HITLRequest, error) {
	now := g.clock.Now()
	req := &ports.HITLRequest{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		StepSeq:   stepSeq,
		Prompt:    prompt,
		Status:    ports.HITLPending,
		Deadline:  now.Add(g.timeout),
		CreatedAt: now,
	}
	if err := g.store.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create hitl request: %w", err)
	}

	if g.emitter != nil {
		g.emitter.Emit(ctx, &HITLRequestedEvent{
			BaseEvent: newBaseEvent(taskID, correlationID, ports.CategoryHITL, now),
			RequestID: req.ID,
			Prompt:    prompt,
			Deadline:  req.Deadline,
		})
	}

	if g.notifier != nil {
		published := *req
		go func() {
			if err := g.notifier.PublishRequest(context.Background(), published); err != nil {
				g.logger.Warn("Failed to publish hitl request %s: %v", published.ID, err)
			}
		}()
	}

	g.armTimer(req.ID, req.Deadline)
	g.logger.Info("HITL request %s opened for task %s, deadline %s", req.ID, taskID, req.Deadline.Format(time.RFC3339))
	return req, nil
}

// Resolve settles an open request. Calling it again, or racing it against
// the deadline timer, is safe: the request transitions exactly once, and
// only the caller that wins the transition folds the answer and fires the
// callback. Losers observe the already-settled request without error.
func (g *HITLGateway) Resolve(ctx context.Context, requestID string, res ports.HITLResolution) (*ports.HITLRequest, error) {
	var to ports.HITLStatus
	switch res.Kind {
	case ports.HITLResolveAnswer:
		to = ports.HITLAnswered
	case ports.HITLResolveTimeout:
		to = ports.HITLTimeout
	case ports.HITLResolveCancel:
		to = ports.HITLCancelled
	default:
		return nil, fmt.Errorf("unknown hitl resolution kind: %s", res.Kind)
	}

	open := []ports.HITLStatus{ports.HITLPending, ports.HITLProcessing}
	won, err := g.store.Transition(ctx, requestID, open, to, res.Answer)
	if err != nil {
		return nil, fmt.Errorf("transition hitl request: %w", err)
	}
	if !won {
		return g.store.Get(ctx, requestID)
	}

	g.disarmTimer(requestID)

	req, err := g.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if res.Kind == ports.HITLResolveAnswer {
		if err := g.foldAnswer(ctx, req); err != nil {
			g.logger.Error("Failed to fold answer for request %s: %v", requestID, err)
			return req, err
		}
		if _, err := g.store.Transition(ctx, requestID, []ports.HITLStatus{ports.HITLAnswered}, ports.HITLCompleted, ""); err != nil {
			return req, fmt.Errorf("complete hitl request: %w", err)
		}
		req.Status = ports.HITLCompleted
	}

	g.metrics.HITLResolved(string(req.Status))
	if g.emitter != nil {
		g.emitter.Emit(ctx, &HITLResolvedEvent{
			BaseEvent: newBaseEvent(req.TaskID, "", ports.CategoryHITL, g.clock.Now()),
			RequestID: req.ID,
			Status:    req.Status,
		})
	}
	if g.notifier != nil {
		published := *req
		go func() {
			if err := g.notifier.PublishResolution(context.Background(), published); err != nil {
				g.logger.Warn("Failed to publish hitl resolution %s: %v", published.ID, err)
			}
		}()
	}

	if g.OnResolved != nil {
		g.OnResolved(*req, res)
	}
	g.logger.Info("HITL request %s resolved as %s", req.ID, req.Status)
	return req, nil
}

// Acknowledge marks a pending request as processing, claiming it for a
// resolver. The claim is advisory: resolution still races through the
// same transition, so a request settled between claim and resolve is
// returned as-is.
func (g *HITLGateway) Acknowledge(ctx context.Context, requestID string) (*ports.HITLRequest, error) {
	if _, err := g.store.Transition(ctx, requestID, []ports.HITLStatus{ports.HITLPending}, ports.HITLProcessing, ""); err != nil {
		return nil, fmt.Errorf("acknowledge hitl request: %w", err)
	}
	return g.store.Get(ctx, requestID)
}

// ResolveOpenForTask settles the task's open request, if any. Used by the
// external resume entrypoint where only the task id is known. The request
// passes through processing so observers can tell a claimed request from
// one still waiting for a resolver.
func (g *HITLGateway) ResolveOpenForTask(ctx context.Context, taskID string, res ports.HITLResolution) (*ports.HITLRequest, error) {
	open, err := g.store.OpenForTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, fmt.Errorf("no open hitl request for task %s", taskID)
	}
	if open.Status == ports.HITLPending {
		if _, err := g.Acknowledge(ctx, open.ID); err != nil {
			return nil, err
		}
	}
	return g.Resolve(ctx, open.ID, res)
}

// foldAnswer appends the human answer to the suspended task's snapshot.
// Runs only on the winning answer transition, so the answer enters the
// context exactly once.
func (g *HITLGateway) foldAnswer(ctx context.Context, req *ports.HITLRequest) error {
	snap, err := g.tasks.LoadSnapshot(ctx, req.TaskID)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	snap.Messages = append(snap.Messages, ports.Message{
		Role:    "user",
		Content: req.Answer,
		Source:  ports.MessageSourceHumanAnswer,
	})
	return g.tasks.SaveSnapshot(ctx, snap)
}

func (g *HITLGateway) armTimer(requestID string, deadline time.Time) {
	delay := deadline.Sub(g.clock.Now())
	if delay < 0 {
		delay = 0
	}
	timer := time.AfterFunc(delay, func() {
		if _, err := g.Resolve(context.Background(), requestID, ports.HITLResolution{Kind: ports.HITLResolveTimeout}); err != nil {
			g.logger.Error("Deadline resolution failed for request %s: %v", requestID, err)
		}
	})

	g.mu.Lock()
	g.timers[requestID] = timer
	g.mu.Unlock()
}

func (g *HITLGateway) disarmTimer(requestID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if timer, ok := g.timers[requestID]; ok {
		timer.Stop()
		delete(g.timers, requestID)
	}
}

// Close stops every outstanding deadline timer. Pending requests stay
// open in the store and time out on the next process's watch.
func (g *HITLGateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, timer := range g.timers {
		timer.Stop()
		delete(g.timers, id)
	}
}
