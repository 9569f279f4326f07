package ports

import "time"

// StepKind classifies what a reasoning turn ultimately did.
type StepKind string

const (
	StepModelTurn StepKind = "model_turn"
	StepToolCall  StepKind = "tool_call"
	StepGoalCheck StepKind = "goal_check"
	StepHumanWait StepKind = "human_wait"
)

// StepOutcome is the decision a completed step hands back to the task loop.
type StepOutcome string

const (
	OutcomeContinue      StepOutcome = "continue"
	OutcomeGoalMet       StepOutcome = "goal_met"
	OutcomeAwaitingHuman StepOutcome = "awaiting_human"
	OutcomeFailed        StepOutcome = "failed"
)

// TaskStep is one reasoning/acting turn within a task. Steps are owned by
// their task and append-only; sequence numbers are contiguous from 1.
type TaskStep struct {
	TaskID        string      `json:"task_id"`
	Seq           int         `json:"seq"`
	Kind          StepKind    `json:"kind"`
	Outcome       StepOutcome `json:"outcome,omitempty"`
	CorrelationID string      `json:"correlation_id"`
	StartedAt     time.Time   `json:"started_at"`
	FinishedAt    time.Time   `json:"finished_at,omitempty"`
}

// InvocationResultKind classifies how a tool call attempt ended.
type InvocationResultKind string

const (
	InvocationSuccess  InvocationResultKind = "success"
	InvocationError    InvocationResultKind = "error"
	InvocationTimeout  InvocationResultKind = "timeout"
	InvocationRejected InvocationResultKind = "rejected"
)

// ToolInvocation is a single tool call attempt, owned by its step.
type ToolInvocation struct {
	ID         string               `json:"id"`
	TaskID     string               `json:"task_id"`
	StepSeq    int                  `json:"step_seq"`
	CallID     string               `json:"call_id"`
	ToolName   string               `json:"tool_name"`
	Arguments  map[string]any       `json:"arguments"`
	Attempt    int                  `json:"attempt"`
	ResultKind InvocationResultKind `json:"result_kind"`
	Content    string               `json:"content,omitempty"`
	Err        error                `json:"-"`
	ErrText    string               `json:"error,omitempty"`
	Metadata   map[string]any       `json:"metadata,omitempty"`
	Artifacts  []ArtifactSpec       `json:"artifacts,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	Duration   time.Duration        `json:"duration"`
}

// ArtifactVisibility separates transient context material from durable
// task outputs.
type ArtifactVisibility string

const (
	ArtifactContextOnly   ArtifactVisibility = "context-only"
	ArtifactDurableOutput ArtifactVisibility = "durable-output"
)

// ToolArtifact is a materialized by-product of a tool invocation. Durable
// artifacts outlive the task.
type ToolArtifact struct {
	ID           string             `json:"id"`
	TaskID       string             `json:"task_id"`
	InvocationID string             `json:"invocation_id"`
	Name         string             `json:"name"`
	Kind         string             `json:"kind"`
	Visibility   ArtifactVisibility `json:"visibility"`
	ContentRef   string             `json:"content_ref,omitempty"` // blob key for stored payloads
	Inline       string             `json:"inline,omitempty"`      // small payloads folded into context
	MediaType    string             `json:"media_type,omitempty"`
	SizeBytes    int                `json:"size_bytes"`
	TokenCount   int                `json:"token_count"`
	CreatedAt    time.Time          `json:"created_at"`
}

// GoalVerdict is a structured judgment of whether a task's goal is satisfied.
type GoalVerdict struct {
	Met       bool   `json:"goal_met"`
	Rationale string `json:"rationale,omitempty"`
}
