package engine

import (
	"time"

	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
)

// BaseEvent provides the common fields for all execution events.
type BaseEvent struct {
	taskID        string
	correlationID string
	category      string
	at            time.Time
}

func newBaseEvent(taskID, correlationID, category string, at time.Time) BaseEvent {
	return BaseEvent{taskID: taskID, correlationID: correlationID, category: category, at: at}
}

func (e *BaseEvent) Category() string         { return e.category }
func (e *BaseEvent) OccurredAt() time.Time    { return e.at }
func (e *BaseEvent) GetTaskID() string        { return e.taskID }
func (e *BaseEvent) GetCorrelationID() string { return e.correlationID }

// TaskStatusEvent - emitted on every task status transition.
type TaskStatusEvent struct {
	BaseEvent
	From   ports.TaskStatus
	To     ports.TaskStatus
	Reason string
}

func (e *TaskStatusEvent) EventType() string { return "task_status" }

// StepStartEvent - emitted when a reasoning turn begins.
type StepStartEvent struct {
	BaseEvent
	Seq int
}

func (e *StepStartEvent) EventType() string { return "step_start" }

// StepCompleteEvent - emitted when a reasoning turn finishes.
type StepCompleteEvent struct {
	BaseEvent
	Seq      int
	Kind     ports.StepKind
	Outcome  ports.StepOutcome
	Duration time.Duration
}

func (e *StepCompleteEvent) EventType() string { return "step_complete" }

// ModelCallStartEvent - emitted before each completion request.
type ModelCallStartEvent struct {
	BaseEvent
	Seq          int
	MessageCount int
	ToolCount    int
}

func (e *ModelCallStartEvent) EventType() string { return "model_call_start" }

// ModelCallCompleteEvent - emitted when the model response is received.
type ModelCallCompleteEvent struct {
	BaseEvent
	Seq           int
	Content       string
	ToolCallCount int
	Usage         ports.TokenUsage
	SourceModel   string
}

func (e *ModelCallCompleteEvent) EventType() string { return "model_call_complete" }

// ToolInvokedEvent - emitted when a tool call attempt finishes, whatever
// the result kind.
type ToolInvokedEvent struct {
	BaseEvent
	Seq        int
	CallID     string
	ToolName   string
	Attempt    int
	ResultKind ports.InvocationResultKind
	Error      string
	Duration   time.Duration
}

func (e *ToolInvokedEvent) EventType() string { return "tool_invoked" }

// ArtifactProducedEvent - emitted for every materialized artifact.
type ArtifactProducedEvent struct {
	BaseEvent
	ArtifactID string
	CallID     string
	Kind       string
	Visibility ports.ArtifactVisibility
	SizeBytes  int
}

func (e *ArtifactProducedEvent) EventType() string { return "artifact_produced" }

// GoalEvaluatedEvent - emitted after each goal check.
type GoalEvaluatedEvent struct {
	BaseEvent
	Seq       int
	Met       bool
	Rationale string
}

func (e *GoalEvaluatedEvent) EventType() string { return "goal_evaluated" }

// HITLRequestedEvent - emitted when execution pauses for a human.
type HITLRequestedEvent struct {
	BaseEvent
	RequestID string
	Prompt    string
	Deadline  time.Time
}

func (e *HITLRequestedEvent) EventType() string { return "hitl_requested" }

// HITLResolvedEvent - emitted once a request reaches a terminal state.
type HITLResolvedEvent struct {
	BaseEvent
	RequestID string
	Status    ports.HITLStatus
}

func (e *HITLResolvedEvent) EventType() string { return "hitl_resolved" }

// TaskCompleteEvent - emitted when the task reaches a terminal status.
type TaskCompleteEvent struct {
	BaseEvent
	Status      ports.TaskStatus
	StopReason  string
	FinalAnswer string
	Steps       int
	Duration    time.Duration
}

func (e *TaskCompleteEvent) EventType() string { return "task_complete" }

// ErrorEvent - emitted on classified errors; every terminal failure
// produces one for audit.
type ErrorEvent struct {
	BaseEvent
	Seq         int
	Phase       string // "think", "execute", "observe", "evaluate", "hitl"
	Kind        xerrors.Kind
	Error       string
	Recoverable bool
}

func (e *ErrorEvent) EventType() string { return "error" }
