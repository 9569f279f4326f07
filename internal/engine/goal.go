package engine

import (
	"context"
	"fmt"
	"strings"

	"aster/internal/engine/ports"
	"aster/internal/logging"
)

// GoalEvaluator judges whether a task's goal is satisfied given the
// execution context so far.
type GoalEvaluator interface {
	Evaluate(ctx context.Context, goal string, snap *ports.TaskSnapshot) (*ports.GoalVerdict, error)
}

const goalCheckPrompt = `You are a strict completion judge. Given the original goal and the execution transcript, decide whether the goal has been fully achieved.

Respond with a single JSON object and nothing else:
{"goal_met": true|false, "rationale": "<one sentence>"}

Original goal:
%s

Latest progress:
%s`

// maxGoalContextMessages bounds how much transcript tail is shown to the
// judge. Older context has already been folded into the running state.
const maxGoalContextMessages = 12

// ModelGoalEvaluator asks the model for a constrained JSON verdict. A
// response with no parseable verdict is surfaced as an error; callers
// conservatively treat it as "not met".
type ModelGoalEvaluator struct {
	model  ports.ModelClient
	logger ports.Logger
}

// NewModelGoalEvaluator constructs a model-backed evaluator.
func NewModelGoalEvaluator(model ports.ModelClient, logger ports.Logger) *ModelGoalEvaluator {
	if logger == nil {
		logger = logging.NewComponentLogger("GoalEvaluator")
	}
	return &ModelGoalEvaluator{model: model, logger: logger}
}

func (e *ModelGoalEvaluator) Evaluate(ctx context.Context, goal string, snap *ports.TaskSnapshot) (*ports.GoalVerdict, error) {
	prompt := fmt.Sprintf(goalCheckPrompt, goal, transcriptTail(snap.Messages, maxGoalContextMessages))

	resp, err := e.model.Complete(ctx, ports.CompletionRequest{
		Messages: []ports.Message{
			{Role: "user", Content: prompt, Source: ports.MessageSourceEngine},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("goal evaluation completion: %w", err)
	}

	verdict, err := ParseVerdict(resp.Content)
	if err != nil {
		e.logger.Warn("Goal verdict unparseable for goal %q: %v", truncateForLog(goal, 80), err)
		return nil, err
	}
	return verdict, nil
}

// transcriptTail renders the last n non-system messages as a compact
// transcript for the judge.
func transcriptTail(messages []ports.Message, n int) string {
	var visible []ports.Message
	for _, m := range messages {
		if m.Source == ports.MessageSourceSystemPrompt {
			continue
		}
		visible = append(visible, m)
	}
	if len(visible) > n {
		visible = visible[len(visible)-n:]
	}

	var b strings.Builder
	for _, m := range visible {
		content := m.Content
		if content == "" && len(m.ToolCalls) > 0 {
			names := make([]string, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				names = append(names, tc.Name)
			}
			content = "[called tools: " + strings.Join(names, ", ") + "]"
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Role, content)
	}
	return b.String()
}

func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
