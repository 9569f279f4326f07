package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
	"aster/internal/logging"
)

const correctiveInstruction = "Your last reply was empty. Reply with either a tool call or a plain-text answer."

// StepResult is the outcome of one reasoning turn.
type StepResult struct {
	Step        ports.TaskStep
	FinalAnswer string
	HumanPrompt string
	Err         error
}

// StepExecutor runs a single Think-Act-Observe turn: one model completion,
// classification, sequential dispatch of any requested tool calls with
// observation folding between them, and a goal check when the model claims
// completion. The executor mutates the snapshot in place; persisting it is
// the processor's job.
type StepExecutor struct {
	model       ports.ModelClient
	tools       ports.Catalogue
	coordinator *ToolCoordinator
	artifacts   *ArtifactProcessor
	evaluator   GoalEvaluator
	emitter     *Emitter
	clock       ports.Clock
	logger      ports.Logger
	retry       xerrors.RetryConfig
}

// StepExecutorConfig wires a StepExecutor.
type StepExecutorConfig struct {
	Model       ports.ModelClient
	Tools       ports.Catalogue
	Coordinator *ToolCoordinator
	Artifacts   *ArtifactProcessor
	Evaluator   GoalEvaluator
	Emitter     *Emitter
	Clock       ports.Clock
	Logger      ports.Logger
	Retry       xerrors.RetryConfig
}

// NewStepExecutor constructs a step executor.
func NewStepExecutor(cfg StepExecutorConfig) *StepExecutor {
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewComponentLogger("StepExecutor")
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = xerrors.DefaultRetryConfig()
	}
	return &StepExecutor{
		model:       cfg.Model,
		tools:       cfg.Tools,
		coordinator: cfg.Coordinator,
		artifacts:   cfg.Artifacts,
		evaluator:   cfg.Evaluator,
		emitter:     cfg.Emitter,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		retry:       cfg.Retry,
	}
}

// ExecuteStep runs turn seq for the task. The returned step carries the
// outcome the processor acts on; a failed outcome includes the classified
// error in Err.
func (s *StepExecutor) ExecuteStep(ctx context.Context, task *ports.AgentTask, snap *ports.TaskSnapshot, seq int) *StepResult {
	correlationID := uuid.NewString()
	started := s.clock.Now()
	step := ports.TaskStep{
		TaskID:        task.ID,
		Seq:           seq,
		Kind:          ports.StepModelTurn,
		CorrelationID: correlationID,
		StartedAt:     started,
	}
	result := &StepResult{Step: step}

	s.emit(ctx, &StepStartEvent{
		BaseEvent: newBaseEvent(task.ID, correlationID, ports.CategoryLifecycle, started),
		Seq:       seq,
	})

	classified, err := s.think(ctx, task, snap, seq, correlationID)
	if err != nil {
		return s.fail(ctx, result, snap, "think", err)
	}

	switch classified.Shape {
	case ShapeHumanInput:
		result.Step.Kind = ports.StepHumanWait
		result.Step.Outcome = ports.OutcomeAwaitingHuman
		result.HumanPrompt = classified.HumanPrompt
		snap.Messages = append(snap.Messages, ports.Message{
			Role:    "assistant",
			Content: classified.Text,
			Source:  ports.MessageSourceAssistant,
		})

	case ShapeToolCalls:
		result.Step.Kind = ports.StepToolCall
		snap.Messages = append(snap.Messages, ports.Message{
			Role:      "assistant",
			Content:   classified.Text,
			ToolCalls: classified.ToolCalls,
			Source:    ports.MessageSourceAssistant,
		})
		if err := s.act(ctx, task, snap, seq, correlationID, classified.ToolCalls); err != nil {
			return s.fail(ctx, result, snap, "execute", err)
		}
		result.Step.Outcome = ports.OutcomeContinue

	case ShapeText:
		result.Step.Kind = ports.StepGoalCheck
		snap.Messages = append(snap.Messages, ports.Message{
			Role:    "assistant",
			Content: classified.Text,
			Source:  ports.MessageSourceAssistant,
		})
		met := s.checkGoal(ctx, task, snap, seq, correlationID)
		if met {
			result.Step.Outcome = ports.OutcomeGoalMet
			result.FinalAnswer = classified.Text
			snap.FinalAnswer = classified.Text
		} else {
			result.Step.Outcome = ports.OutcomeContinue
		}

	default:
		return s.fail(ctx, result, snap, "think",
			&xerrors.MalformedOutputError{Detail: "empty response after corrective retry"})
	}

	result.Step.FinishedAt = s.clock.Now()
	snap.StepCount = seq
	s.emitStepComplete(ctx, result)
	return result
}

// think runs the model completion for this turn, classifying the response
// and performing at most one corrective retry on a malformed reply.
func (s *StepExecutor) think(ctx context.Context, task *ports.AgentTask, snap *ports.TaskSnapshot, seq int, correlationID string) (ClassifiedResponse, error) {
	defs := append(s.tools.List(), AskHumanDefinition())

	classified, err := s.completeOnce(ctx, task, snap.Messages, defs, snap, seq, correlationID)
	if err != nil {
		return ClassifiedResponse{}, err
	}
	if classified.Shape != ShapeMalformed {
		return classified, nil
	}

	// One corrective retry, with the instruction visible to the model.
	s.logger.Warn("Malformed model output for task %s step %d, retrying once", task.ID, seq)
	corrective := append(append([]ports.Message{}, snap.Messages...), ports.Message{
		Role:    "user",
		Content: correctiveInstruction,
		Source:  ports.MessageSourceEngine,
	})
	classified, err = s.completeOnce(ctx, task, corrective, defs, snap, seq, correlationID)
	if err != nil {
		return ClassifiedResponse{}, err
	}
	return classified, nil
}

func (s *StepExecutor) completeOnce(ctx context.Context, task *ports.AgentTask, messages []ports.Message, defs []ports.ToolDefinition, snap *ports.TaskSnapshot, seq int, correlationID string) (ClassifiedResponse, error) {
	s.emit(ctx, &ModelCallStartEvent{
		BaseEvent:    newBaseEvent(task.ID, correlationID, ports.CategoryModel, s.clock.Now()),
		Seq:          seq,
		MessageCount: len(messages),
		ToolCount:    len(defs),
	})

	var resp *ports.CompletionResponse
	err := xerrors.Retry(ctx, s.retry, s.logger, func(ctx context.Context) error {
		var cerr error
		resp, cerr = s.model.Complete(ctx, ports.CompletionRequest{
			Messages: messages,
			Tools:    defs,
		})
		return cerr
	})
	if err != nil {
		return ClassifiedResponse{}, fmt.Errorf("model completion: %w", err)
	}

	snap.TokenCount += resp.Usage.TotalTokens
	s.emit(ctx, &ModelCallCompleteEvent{
		BaseEvent:     newBaseEvent(task.ID, correlationID, ports.CategoryModel, s.clock.Now()),
		Seq:           seq,
		Content:       resp.Content,
		ToolCallCount: len(resp.ToolCalls),
		Usage:         resp.Usage,
		SourceModel:   s.model.Model(),
	})

	return ClassifyResponse(resp), nil
}

// act dispatches the step's tool calls in order, folding each observation
// and its artifacts into the snapshot before the next call runs. Failed
// invocations fold as error-shaped observations; only an unknown tool
// aborts the step.
func (s *StepExecutor) act(ctx context.Context, task *ports.AgentTask, snap *ports.TaskSnapshot, seq int, correlationID string, calls []ports.ToolCall) error {
	for _, call := range calls {
		call.TaskID = task.ID
		call.ConversationID = task.ConversationID
		if call.ID == "" {
			call.ID = uuid.NewString()
		}

		inv, err := s.coordinator.Invoke(ctx, call, seq, 1, correlationID)
		if err != nil {
			return err
		}

		content := inv.Content
		if inv.ResultKind != ports.InvocationSuccess {
			content = fmt.Sprintf("error (%s): %s", inv.ResultKind, inv.ErrText)
		}
		snap.Messages = append(snap.Messages, ports.Message{
			Role:       "tool",
			Content:    content,
			ToolCallID: call.ID,
			Source:     ports.MessageSourceToolResult,
		})

		if inv.ResultKind == ports.InvocationSuccess && len(inv.Artifacts) > 0 {
			_, folds, err := s.artifacts.Ingest(ctx, inv, correlationID)
			if err != nil {
				return err
			}
			for _, fold := range folds {
				snap.Messages = append(snap.Messages, ports.Message{
					Role:    "user",
					Content: fold,
					Source:  ports.MessageSourceEngine,
				})
			}
		}
	}
	return nil
}

// checkGoal runs the goal evaluation for a completion-claiming reply. A
// verdict that cannot be parsed counts as not met: the loop continues and
// the model gets another turn.
func (s *StepExecutor) checkGoal(ctx context.Context, task *ports.AgentTask, snap *ports.TaskSnapshot, seq int, correlationID string) bool {
	verdict, err := s.evaluator.Evaluate(ctx, task.Goal, snap)
	if err != nil {
		if xerrors.IsUnparseableVerdict(err) {
			s.emit(ctx, &GoalEvaluatedEvent{
				BaseEvent: newBaseEvent(task.ID, correlationID, ports.CategoryGoal, s.clock.Now()),
				Seq:       seq,
				Met:       false,
				Rationale: "verdict unparseable, continuing",
			})
			return false
		}
		s.logger.Warn("Goal evaluation failed for task %s step %d: %v", task.ID, seq, err)
		s.emit(ctx, &ErrorEvent{
			BaseEvent:   newBaseEvent(task.ID, correlationID, ports.CategoryError, s.clock.Now()),
			Seq:         seq,
			Phase:       "evaluate",
			Kind:        xerrors.Classify(err),
			Error:       err.Error(),
			Recoverable: true,
		})
		return false
	}

	s.emit(ctx, &GoalEvaluatedEvent{
		BaseEvent: newBaseEvent(task.ID, correlationID, ports.CategoryGoal, s.clock.Now()),
		Seq:       seq,
		Met:       verdict.Met,
		Rationale: verdict.Rationale,
	})
	if !verdict.Met && verdict.Rationale != "" {
		snap.Messages = append(snap.Messages, ports.Message{
			Role:    "user",
			Content: "The goal is not yet achieved: " + verdict.Rationale,
			Source:  ports.MessageSourceEngine,
		})
	}
	return verdict.Met
}

func (s *StepExecutor) fail(ctx context.Context, result *StepResult, snap *ports.TaskSnapshot, phase string, err error) *StepResult {
	result.Step.Outcome = ports.OutcomeFailed
	result.Step.FinishedAt = s.clock.Now()
	result.Err = err
	snap.StepCount = result.Step.Seq

	s.emit(ctx, &ErrorEvent{
		BaseEvent:   newBaseEvent(result.Step.TaskID, result.Step.CorrelationID, ports.CategoryError, result.Step.FinishedAt),
		Seq:         result.Step.Seq,
		Phase:       phase,
		Kind:        xerrors.Classify(err),
		Error:       err.Error(),
		Recoverable: false,
	})
	s.emitStepComplete(ctx, result)
	return result
}

func (s *StepExecutor) emitStepComplete(ctx context.Context, result *StepResult) {
	s.emit(ctx, &StepCompleteEvent{
		BaseEvent: newBaseEvent(result.Step.TaskID, result.Step.CorrelationID, ports.CategoryLifecycle, result.Step.FinishedAt),
		Seq:       result.Step.Seq,
		Kind:      result.Step.Kind,
		Outcome:   result.Step.Outcome,
		Duration:  result.Step.FinishedAt.Sub(result.Step.StartedAt),
	})
}

func (s *StepExecutor) emit(ctx context.Context, event ports.ExecutionEvent) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, event)
	}
}
