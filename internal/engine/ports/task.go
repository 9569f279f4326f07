package ports

import "time"

// TaskStatus enumerates the task state machine.
type TaskStatus string

const (
	TaskPending      TaskStatus = "pending"
	TaskRunning      TaskStatus = "running"
	TaskWaitingHuman TaskStatus = "waiting_human"
	TaskCompleted    TaskStatus = "completed"
	TaskFailed       TaskStatus = "failed"
	TaskTimeout      TaskStatus = "timeout"
	TaskCancelled    TaskStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskTimeout, TaskCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal,
// monotonic transition along the task state machine.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskPending:
		return next == TaskRunning || next == TaskCancelled
	case TaskRunning:
		switch next {
		case TaskWaitingHuman, TaskCompleted, TaskFailed, TaskTimeout, TaskCancelled:
			return true
		}
	case TaskWaitingHuman:
		switch next {
		case TaskRunning, TaskTimeout, TaskCancelled:
			return true
		}
	}
	return false
}

// AgentTask is a unit of work for one conversation.
type AgentTask struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Goal           string     `json:"goal"`
	Status         TaskStatus `json:"status"`
	Priority       int        `json:"priority"`
	OrderIndex     int        `json:"order_index"`
	MaxSteps       int        `json:"max_steps,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Stop reasons recorded on terminal task results.
const (
	StopReasonGoalMet         = "goal_met"
	StopReasonStepFailed      = "step_failed"
	StopReasonBudgetExhausted = "budget_exhausted"
	StopReasonWallClock       = "wall_clock"
	StopReasonCancelled       = "cancelled"
	StopReasonAwaitingHuman   = "awaiting_human"
	StopReasonHITLTimeout     = "hitl_timeout"
)

// TaskResult is the outcome of one processor run, including a paused run
// that is suspended awaiting human input.
type TaskResult struct {
	TaskID      string        `json:"task_id"`
	Status      TaskStatus    `json:"status"`
	StopReason  string        `json:"stop_reason"`
	FinalAnswer string        `json:"final_answer,omitempty"`
	Steps       int           `json:"steps"`
	Duration    time.Duration `json:"duration"`
}

// TaskSnapshot is the resumable execution state of a task. It is persisted
// at every suspension point so the loop survives a process restart.
type TaskSnapshot struct {
	TaskID       string    `json:"task_id"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
	StepCount    int       `json:"step_count"`
	TokenCount   int       `json:"token_count"`
	FinalAnswer  string    `json:"final_answer,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}
