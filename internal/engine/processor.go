package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
	"aster/internal/logging"
	"aster/internal/metrics"
)

const (
	// DefaultMaxSteps bounds the reasoning loop when the task does not
	// carry its own budget.
	DefaultMaxSteps = 25

	// DefaultWallClockBudget bounds a single run call.
	DefaultWallClockBudget = 10 * time.Minute

	defaultSystemPrompt = "You are an autonomous task agent. Work toward the goal step by step. Use the available tools to act and observe; when the goal is achieved, reply with a plain-text final answer. If you are blocked on information only a human can provide, call ask_human."
)

// TaskProcessor drives tasks through the reasoning loop. A run holds the
// conversation's exclusive run-slot from claim until the task reaches a
// terminal status; the slot survives human-in-the-loop suspension so no
// sibling task can interleave. Resumption is an ordinary external call
// against persisted state, safe to invoke from any process.
type TaskProcessor struct {
	store    ports.TaskStore
	executor *StepExecutor
	gateway  *HITLGateway
	emitter  *Emitter
	clock    ports.Clock
	logger   ports.Logger
	metrics  *metrics.Metrics
	hooks    ports.Hooks

	systemPrompt string
	maxSteps     int
	wallClock    time.Duration
}

// TaskProcessorConfig wires a TaskProcessor.
type TaskProcessorConfig struct {
	Store        ports.TaskStore
	Executor     *StepExecutor
	Gateway      *HITLGateway
	Emitter      *Emitter
	Clock        ports.Clock
	Logger       ports.Logger
	Metrics      *metrics.Metrics
	Hooks        ports.Hooks
	SystemPrompt string
	MaxSteps     int
	WallClock    time.Duration
}

// NewTaskProcessor constructs a processor and registers its resume hook
// with the HITL gateway.
func NewTaskProcessor(cfg TaskProcessorConfig) *TaskProcessor {
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewComponentLogger("TaskProcessor")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.WallClock <= 0 {
		cfg.WallClock = DefaultWallClockBudget
	}

	p := &TaskProcessor{
		store:        cfg.Store,
		executor:     cfg.Executor,
		gateway:      cfg.Gateway,
		emitter:      cfg.Emitter,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		hooks:        cfg.Hooks,
		systemPrompt: cfg.SystemPrompt,
		maxSteps:     cfg.MaxSteps,
		wallClock:    cfg.WallClock,
	}
	if p.gateway != nil {
		p.gateway.OnResolved = p.handleResolution
	}
	return p
}

// Run executes a pending task until it completes, fails, exhausts its
// budgets or suspends for a human. A second task of the same conversation
// is rejected with a conflict while the slot is held.
func (p *TaskProcessor) Run(ctx context.Context, taskID string) (*ports.TaskResult, error) {
	task, err := p.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != ports.TaskPending {
		return nil, fmt.Errorf("task %s is %s, only pending tasks can be run", taskID, task.Status)
	}

	if err := p.store.ClaimRun(ctx, task.ConversationID, task.ID); err != nil {
		return nil, err
	}
	if err := p.transition(ctx, task, ports.TaskRunning, "run started"); err != nil {
		_ = p.store.ReleaseRun(ctx, task.ConversationID, task.ID)
		return nil, err
	}

	snap := &ports.TaskSnapshot{
		TaskID:       task.ID,
		SystemPrompt: p.systemPrompt,
		Messages: []ports.Message{
			{Role: "system", Content: p.systemPrompt, Source: ports.MessageSourceSystemPrompt},
			{Role: "user", Content: task.Goal, Source: ports.MessageSourceUserInput},
		},
		StartedAt: p.clock.Now(),
	}
	if err := p.store.SaveSnapshot(ctx, snap); err != nil {
		_ = p.store.ReleaseRun(ctx, task.ConversationID, task.ID)
		return nil, fmt.Errorf("save initial snapshot: %w", err)
	}

	return p.loop(ctx, task, snap)
}

// Resume continues a task suspended in waiting_human after its open
// request was answered. The answer has already been folded into the
// snapshot by the gateway; the loop simply picks up where it left off.
// The run-slot is still held from the original run, so the re-claim is a
// no-op.
func (p *TaskProcessor) Resume(ctx context.Context, taskID string) (*ports.TaskResult, error) {
	task, err := p.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != ports.TaskWaitingHuman {
		return nil, fmt.Errorf("task %s is %s, only waiting_human tasks can be resumed", taskID, task.Status)
	}

	open, err := p.gateway.store.OpenForTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, &xerrors.ConflictError{
			Resource: "hitl request",
			Detail:   fmt.Sprintf("task %s still has open request %s", taskID, open.ID),
		}
	}

	if err := p.store.ClaimRun(ctx, task.ConversationID, task.ID); err != nil {
		return nil, err
	}
	if err := p.transition(ctx, task, ports.TaskRunning, "human answered"); err != nil {
		return nil, err
	}

	snap, err := p.store.LoadSnapshot(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return p.loop(ctx, task, snap)
}

// loop runs steps until a terminal outcome or a suspension point.
func (p *TaskProcessor) loop(ctx context.Context, task *ports.AgentTask, snap *ports.TaskSnapshot) (result *ports.TaskResult, err error) {
	tracer := otel.Tracer("aster/engine")
	ctx, span := tracer.Start(ctx, "task.run")
	span.SetAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("conversation.id", task.ConversationID),
	)
	defer span.End()

	p.metrics.TaskStarted()
	defer p.metrics.TaskStopped()

	runStarted := p.clock.Now()
	deadline := runStarted.Add(p.wallClock)
	maxSteps := task.MaxSteps
	if maxSteps <= 0 {
		maxSteps = p.maxSteps
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task %s panicked: %v", task.ID, r)
			span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", r))
			result, err = p.finalize(ctx, task, snap, ports.TaskFailed, ports.StopReasonStepFailed, runStarted)
		}
	}()

	for seq := snap.StepCount + 1; ; seq++ {
		if ctx.Err() != nil {
			return p.finalize(ctx, task, snap, ports.TaskCancelled, ports.StopReasonCancelled, runStarted)
		}
		if seq > maxSteps {
			p.logger.Info("Task %s exhausted its step budget of %d", task.ID, maxSteps)
			return p.finalize(ctx, task, snap, ports.TaskTimeout, ports.StopReasonBudgetExhausted, runStarted)
		}
		if p.clock.Now().After(deadline) {
			p.logger.Info("Task %s exceeded the wall-clock budget of %s", task.ID, p.wallClock)
			return p.finalize(ctx, task, snap, ports.TaskTimeout, ports.StopReasonWallClock, runStarted)
		}

		stepResult := p.executor.ExecuteStep(ctx, task, snap, seq)

		if appendErr := p.store.AppendStep(ctx, &stepResult.Step); appendErr != nil {
			span.SetStatus(codes.Error, appendErr.Error())
			p.failOnPersistenceError(ctx, task, snap, runStarted, appendErr)
			return nil, fmt.Errorf("append step %d: %w", seq, appendErr)
		}
		if saveErr := p.store.SaveSnapshot(ctx, snap); saveErr != nil {
			span.SetStatus(codes.Error, saveErr.Error())
			p.failOnPersistenceError(ctx, task, snap, runStarted, saveErr)
			return nil, fmt.Errorf("save snapshot after step %d: %w", seq, saveErr)
		}
		p.metrics.StepCompleted(string(stepResult.Step.Outcome), stepResult.Step.FinishedAt.Sub(stepResult.Step.StartedAt))
		if p.hooks.OnStepCompleted != nil {
			p.hooks.OnStepCompleted(*task, stepResult.Step)
		}

		switch stepResult.Step.Outcome {
		case ports.OutcomeGoalMet:
			return p.finalize(ctx, task, snap, ports.TaskCompleted, ports.StopReasonGoalMet, runStarted)

		case ports.OutcomeFailed:
			span.SetStatus(codes.Error, stepResult.Err.Error())
			return p.finalize(ctx, task, snap, ports.TaskFailed, ports.StopReasonStepFailed, runStarted)

		case ports.OutcomeAwaitingHuman:
			return p.suspend(ctx, task, snap, stepResult, runStarted)
		}
	}
}

// suspend parks the task in waiting_human with an open request. The
// run-slot stays held; the gateway's resolution callback brings the task
// back (or buries it on timeout).
//
// The task must be in waiting_human before the request becomes visible:
// the notifier can deliver an answer the moment the request is published,
// and Resume rejects any other status. Opening the request first would
// lose that answer.
func (p *TaskProcessor) suspend(ctx context.Context, task *ports.AgentTask, snap *ports.TaskSnapshot, stepResult *StepResult, runStarted time.Time) (*ports.TaskResult, error) {
	if err := p.transition(ctx, task, ports.TaskWaitingHuman, "awaiting human input"); err != nil {
		return nil, err
	}
	if _, err := p.gateway.Request(ctx, task.ID, stepResult.Step.Seq, stepResult.HumanPrompt, stepResult.Step.CorrelationID); err != nil {
		p.logger.Error("Cannot open human request for task %s: %v", task.ID, err)
		if terr := p.transition(ctx, task, ports.TaskRunning, "human request rejected"); terr != nil {
			return nil, terr
		}
		return p.finalize(ctx, task, snap, ports.TaskFailed, ports.StopReasonStepFailed, runStarted)
	}

	p.logger.Info("Task %s suspended awaiting human input", task.ID)
	return &ports.TaskResult{
		TaskID:     task.ID,
		Status:     ports.TaskWaitingHuman,
		StopReason: ports.StopReasonAwaitingHuman,
		Steps:      snap.StepCount,
		Duration:   p.clock.Now().Sub(runStarted),
	}, nil
}

// handleResolution reacts to a settled HITL request. Answers resume the
// loop on a fresh goroutine; timeouts and cancellations bury the task.
func (p *TaskProcessor) handleResolution(req ports.HITLRequest, res ports.HITLResolution) {
	switch res.Kind {
	case ports.HITLResolveAnswer:
		go func() {
			if _, err := p.Resume(context.Background(), req.TaskID); err != nil {
				p.logger.Error("Resume after answer failed for task %s: %v", req.TaskID, err)
			}
		}()

	case ports.HITLResolveTimeout:
		go p.buryWaitingTask(req.TaskID, ports.TaskTimeout, ports.StopReasonHITLTimeout)

	case ports.HITLResolveCancel:
		go p.buryWaitingTask(req.TaskID, ports.TaskCancelled, ports.StopReasonCancelled)
	}
}

// failOnPersistenceError finalizes a task whose step or snapshot could
// not be written. The loop cannot continue without durable state, and
// leaving the task running would hold the conversation's run-slot
/// forever. Best effort: the store that just failed may fail again.
func (p *TaskProcessor) failOnPersistenceError(ctx context.Context, task *ports.AgentTask, snap *ports.TaskSnapshot, runStarted time.Time, cause error) {
	p.logger.Error("Task %s cannot persist progress: %v", task.ID, cause)
	if _, err := p.finalize(ctx, task, snap, ports.TaskFailed, ports.StopReasonStepFailed, runStarted); err != nil {
		p.logger.Error("Cannot finalize task %s after persistence failure: %v", task.ID, err)
		if err := p.store.ReleaseRun(ctx, task.ConversationID, task.ID); err != nil {
			p.logger.Error("Cannot release run-slot for conversation %s: %v", task.ConversationID, err)
		}
	}
}

// buryWaitingTask finalizes a suspended task whose request expired or was
// withdrawn.
func (p *TaskProcessor) buryWaitingTask(taskID string, status ports.TaskStatus, stopReason string) {
	ctx := context.Background()
	task, err := p.store.GetTask(ctx, taskID)
	if err != nil {
		p.logger.Error("Cannot load task %s to finalize: %v", taskID, err)
		return
	}
	if task.Status != ports.TaskWaitingHuman {
		return
	}
	snap, err := p.store.LoadSnapshot(ctx, taskID)
	if err != nil {
		p.logger.Error("Cannot load snapshot for task %s: %v", taskID, err)
		return
	}
	if _, err := p.finalize(ctx, task, snap, status, stopReason, snap.StartedAt); err != nil {
		p.logger.Error("Cannot finalize task %s as %s: %v", taskID, status, err)
	}
}

// finalize moves the task to a terminal status, releases the run-slot and
// emits the completion record.
func (p *TaskProcessor) finalize(ctx context.Context, task *ports.AgentTask, snap *ports.TaskSnapshot, status ports.TaskStatus, stopReason string, runStarted time.Time) (*ports.TaskResult, error) {
	if err := p.transition(ctx, task, status, stopReason); err != nil {
		return nil, err
	}
	if err := p.store.ReleaseRun(ctx, task.ConversationID, task.ID); err != nil {
		p.logger.Warn("Failed to release run-slot for conversation %s: %v", task.ConversationID, err)
	}

	duration := p.clock.Now().Sub(runStarted)
	p.metrics.TaskFinished(string(status), stopReason)
	if p.emitter != nil {
		p.emitter.Emit(ctx, &TaskCompleteEvent{
			BaseEvent:   newBaseEvent(task.ID, "", ports.CategoryLifecycle, p.clock.Now()),
			Status:      status,
			StopReason:  stopReason,
			FinalAnswer: snap.FinalAnswer,
			Steps:       snap.StepCount,
			Duration:    duration,
		})
	}
	p.logger.Info("Task %s finished status=%s reason=%s steps=%d", task.ID, status, stopReason, snap.StepCount)

	return &ports.TaskResult{
		TaskID:      task.ID,
		Status:      status,
		StopReason:  stopReason,
		FinalAnswer: snap.FinalAnswer,
		Steps:       snap.StepCount,
		Duration:    duration,
	}, nil
}

// transition applies a status change, emits the status event and fires
// the status hook.
func (p *TaskProcessor) transition(ctx context.Context, task *ports.AgentTask, to ports.TaskStatus, reason string) error {
	from := task.Status
	if err := p.store.UpdateStatus(ctx, task.ID, to); err != nil {
		return err
	}
	task.Status = to
	task.UpdatedAt = p.clock.Now()

	if p.emitter != nil {
		p.emitter.Emit(ctx, &TaskStatusEvent{
			BaseEvent: newBaseEvent(task.ID, "", ports.CategoryLifecycle, task.UpdatedAt),
			From:      from,
			To:        to,
			Reason:    reason,
		})
	}
	if p.hooks.OnStatusChanged != nil {
		p.hooks.OnStatusChanged(*task, from, to)
	}
	return nil
}
