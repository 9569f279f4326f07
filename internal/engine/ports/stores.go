package ports

import "context"

// TaskStore persists tasks, steps, snapshots and artifacts. The relational
// mechanics behind it belong to the persistence layer; the engine only
// depends on this contract.
type TaskStore interface {
	CreateTask(ctx context.Context, task *AgentTask) error
	GetTask(ctx context.Context, taskID string) (*AgentTask, error)

	// UpdateStatus transitions the task status. Illegal transitions fail.
	UpdateStatus(ctx context.Context, taskID string, to TaskStatus) error

	// ClaimRun acquires the exclusive run-slot for the conversation. It
	// fails with a conflict when another task of the same conversation is
	// running or waiting for a human; re-claiming for the holder is a no-op.
	ClaimRun(ctx context.Context, conversationID, taskID string) error

	// ReleaseRun frees the run-slot if held by taskID.
	ReleaseRun(ctx context.Context, conversationID, taskID string) error

	// AppendStep records a finished step. Sequence numbers must be
	// contiguous starting at 1.
	AppendStep(ctx context.Context, step *TaskStep) error
	ListSteps(ctx context.Context, taskID string) ([]TaskStep, error)

	SaveSnapshot(ctx context.Context, snap *TaskSnapshot) error
	LoadSnapshot(ctx context.Context, taskID string) (*TaskSnapshot, error)

	SaveArtifact(ctx context.Context, artifact *ToolArtifact) error
	ListArtifacts(ctx context.Context, taskID string) ([]ToolArtifact, error)
}

// HITLStore persists human-in-the-loop requests.
type HITLStore interface {
	// Create stores a new request. It fails with a conflict when the task
	// already has an open (pending or processing) request.
	Create(ctx context.Context, req *HITLRequest) error

	Get(ctx context.Context, requestID string) (*HITLRequest, error)

	// OpenForTask returns the task's open request, or nil.
	OpenForTask(ctx context.Context, taskID string) (*HITLRequest, error)

	// Transition moves the request from one of the given states to next,
	// recording the answer when provided. It returns false without error
	// when the request is not in any of the from states, which makes
	// external resolution idempotent.
	Transition(ctx context.Context, requestID string, from []HITLStatus, to HITLStatus, answer string) (bool, error)
}
