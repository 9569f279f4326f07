// Package engine implements the agent task-execution loop: a task is
// driven through Think-Act-Observe turns against a tool catalogue until
// its goal is met, a budget runs out, or a human is needed. Execution is
// fully observable through an ordered per-task event log and resumable
// from persisted snapshots.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"aster/internal/blobstore"
	"aster/internal/engine/ports"
	"aster/internal/logging"
	"aster/internal/metrics"
)

// Config assembles an Engine. Store, Events, Blobs, Model and Tools are
// required; everything else has working defaults.
type Config struct {
	Store ports.TaskStore
	HITL  ports.HITLStore
	Blobs blobstore.BlobStore

	Model     ports.ModelClient
	Evaluator GoalEvaluator
	Tools     ports.Catalogue
	Events    ports.EventSink
	Notifier  ports.Notifier

	Logger  ports.Logger
	Clock   ports.Clock
	Metrics *metrics.Metrics
	Hooks   ports.Hooks

	SystemPrompt string
	MaxSteps     int
	WallClock    time.Duration
	ToolTimeout  time.Duration
	HITLTimeout  time.Duration
}

// Engine is the public face of the task loop. One Engine serves many
// conversations; per-conversation exclusivity is enforced by the store's
// run-slot.
type Engine struct {
	config    Config
	store     ports.TaskStore
	emitter   *Emitter
	gateway   *HITLGateway
	processor *TaskProcessor
	logger    ports.Logger
}

// New wires an Engine from the config.
func New(cfg Config) *Engine {
	logger := logging.OrNop(cfg.Logger)
	clock := cfg.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}

	emitter := NewEmitter(cfg.Events, logger, cfg.Metrics)

	coordinator := NewToolCoordinator(ToolCoordinatorConfig{
		Tools:   cfg.Tools,
		Emitter: emitter,
		Clock:   clock,
		Logger:  logger,
		Metrics: cfg.Metrics,
		Timeout: cfg.ToolTimeout,
	})
	artifacts := NewArtifactProcessor(ArtifactProcessorConfig{
		Blobs:   cfg.Blobs,
		Store:   cfg.Store,
		Emitter: emitter,
		Clock:   clock,
		Logger:  logger,
	})

	evaluator := cfg.Evaluator
	if evaluator == nil {
		evaluator = NewModelGoalEvaluator(cfg.Model, logger)
	}

	executor := NewStepExecutor(StepExecutorConfig{
		Model:       cfg.Model,
		Tools:       cfg.Tools,
		Coordinator: coordinator,
		Artifacts:   artifacts,
		Evaluator:   evaluator,
		Emitter:     emitter,
		Clock:       clock,
		Logger:      logger,
	})
	gateway := NewHITLGateway(HITLGatewayConfig{
		Store:    cfg.HITL,
		Tasks:    cfg.Store,
		Emitter:  emitter,
		Notifier: cfg.Notifier,
		Clock:    clock,
		Logger:   logger,
		Metrics:  cfg.Metrics,
		Timeout:  cfg.HITLTimeout,
	})
	processor := NewTaskProcessor(TaskProcessorConfig{
		Store:        cfg.Store,
		Executor:     executor,
		Gateway:      gateway,
		Emitter:      emitter,
		Clock:        clock,
		Logger:       logger,
		Metrics:      cfg.Metrics,
		Hooks:        cfg.Hooks,
		SystemPrompt: cfg.SystemPrompt,
		MaxSteps:     cfg.MaxSteps,
		WallClock:    cfg.WallClock,
	})

	return &Engine{
		config:    cfg,
		store:     cfg.Store,
		emitter:   emitter,
		gateway:   gateway,
		processor: processor,
		logger:    logger,
	}
}

// SubmitTask registers a new pending task for the conversation.
func (e *Engine) SubmitTask(ctx context.Context, conversationID, goal string, maxSteps int) (*ports.AgentTask, error) {
	task := &ports.AgentTask{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Goal:           goal,
		Status:         ports.TaskPending,
		MaxSteps:       maxSteps,
	}
	if err := e.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	e.logger.Info("Task %s submitted for conversation %s", task.ID, conversationID)
	return task, nil
}

// Run executes a pending task to its next stopping point.
func (e *Engine) Run(ctx context.Context, taskID string) (*ports.TaskResult, error) {
	return e.processor.Run(ctx, taskID)
}

// Resume continues a suspended task whose human request was answered.
func (e *Engine) Resume(ctx context.Context, taskID string) (*ports.TaskResult, error) {
	return e.processor.Resume(ctx, taskID)
}

// Answer settles the task's open human request with the given answer and
// triggers an asynchronous resume. Repeated answers are no-ops.
func (e *Engine) Answer(ctx context.Context, taskID, answer string) (*ports.HITLRequest, error) {
	return e.gateway.ResolveOpenForTask(ctx, taskID, ports.HITLResolution{
		Kind:   ports.HITLResolveAnswer,
		Answer: answer,
	})
}

// CancelHumanRequest withdraws the task's open human request, which
// finalizes the task as cancelled.
func (e *Engine) CancelHumanRequest(ctx context.Context, taskID string) (*ports.HITLRequest, error) {
	return e.gateway.ResolveOpenForTask(ctx, taskID, ports.HITLResolution{Kind: ports.HITLResolveCancel})
}

// GetTask returns the task record.
func (e *Engine) GetTask(ctx context.Context, taskID string) (*ports.AgentTask, error) {
	return e.store.GetTask(ctx, taskID)
}

// Snapshot returns the task's persisted execution state.
func (e *Engine) Snapshot(ctx context.Context, taskID string) (*ports.TaskSnapshot, error) {
	return e.store.LoadSnapshot(ctx, taskID)
}

// Subscribe returns a live event feed for one task.
func (e *Engine) Subscribe(taskID string) (<-chan ports.SequencedEvent, func()) {
	return e.emitter.Subscribe(taskID)
}

// Replay returns the full ordered event log for a task.
func (e *Engine) Replay(ctx context.Context, taskID string) ([]ports.SequencedEvent, error) {
	return e.emitter.Replay(ctx, taskID)
}

// Artifacts lists the artifacts recorded for a task.
func (e *Engine) Artifacts(ctx context.Context, taskID string) ([]ports.ToolArtifact, error) {
	return e.store.ListArtifacts(ctx, taskID)
}

// Close releases background resources, stopping HITL deadline timers.
func (e *Engine) Close() {
	e.gateway.Close()
}
