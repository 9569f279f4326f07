package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aster/internal/catalogue"
	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
	"aster/internal/logging"
	"aster/internal/metrics"
)

// DefaultToolTimeout bounds a single tool invocation attempt.
const DefaultToolTimeout = 60 * time.Second

// ToolCoordinator dispatches individual tool calls against the catalogue.
// Every attempt, whatever its fate, produces exactly one ToolInvocation
// record and one ToolInvokedEvent. A non-nil error is returned only for
// unknown tools; schema rejections, timeouts and tool failures are encoded
// in the invocation's result kind so the step loop can fold them into
// context instead of aborting.
type ToolCoordinator struct {
	tools   ports.Catalogue
	emitter *Emitter
	clock   ports.Clock
	logger  ports.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

// ToolCoordinatorConfig wires a ToolCoordinator.
type ToolCoordinatorConfig struct {
	Tools   ports.Catalogue
	Emitter *Emitter
	Clock   ports.Clock
	Logger  ports.Logger
	Metrics *metrics.Metrics
	Timeout time.Duration
}

// NewToolCoordinator constructs a coordinator over the given catalogue.
func NewToolCoordinator(cfg ToolCoordinatorConfig) *ToolCoordinator {
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewComponentLogger("ToolCoordinator")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultToolTimeout
	}
	return &ToolCoordinator{
		tools:   cfg.Tools,
		emitter: cfg.Emitter,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		timeout: cfg.Timeout,
	}
}

// Invoke executes one tool call attempt. Arguments are validated against
// the declared schema before the tool runs; rejected calls never reach the
// tool. The attempt counter is recorded verbatim for audit.
func (c *ToolCoordinator) Invoke(ctx context.Context, call ports.ToolCall, stepSeq, attempt int, correlationID string) (*ports.ToolInvocation, error) {
	started := c.clock.Now()
	inv := &ports.ToolInvocation{
		ID:        uuid.NewString(),
		TaskID:    call.TaskID,
		StepSeq:   stepSeq,
		CallID:    call.ID,
		ToolName:  call.Name,
		Arguments: call.Arguments,
		Attempt:   attempt,
		StartedAt: started,
	}

	tool, err := c.tools.Get(call.Name)
	if err != nil {
		return nil, &xerrors.ToolNotFoundError{Tool: call.Name}
	}

	if verr := catalogue.ValidateArguments(tool.Definition(), call.Arguments); verr != nil {
		inv.ResultKind = ports.InvocationRejected
		inv.Err = verr
		inv.ErrText = verr.Error()
		c.finish(ctx, inv, correlationID)
		return inv, nil
	}

	result, err := c.execute(ctx, tool, call)
	inv.Duration = c.clock.Now().Sub(started)

	switch {
	case err != nil && xerrors.IsToolTimeout(err):
		inv.ResultKind = ports.InvocationTimeout
		inv.Err = err
		inv.ErrText = err.Error()
	case err != nil:
		inv.ResultKind = ports.InvocationError
		inv.Err = err
		inv.ErrText = err.Error()
	case result != nil && result.Error != nil:
		inv.ResultKind = ports.InvocationError
		inv.Err = result.Error
		inv.ErrText = result.Error.Error()
		inv.Content = result.Content
		inv.Metadata = result.Metadata
	default:
		inv.ResultKind = ports.InvocationSuccess
		if result != nil {
			inv.Content = result.Content
			inv.Metadata = result.Metadata
			inv.Artifacts = result.Artifacts
		}
	}

	c.finish(ctx, inv, correlationID)
	return inv, nil
}

// execute runs the tool under the invocation timeout, converting panics
// and deadline expiry into classified errors. The tool goroutine may
// outlive a timed-out call; its result is discarded through the buffered
// channel.
func (c *ToolCoordinator) execute(ctx context.Context, tool ports.Tool, call ports.ToolCall) (*ports.ToolResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		result *ports.ToolResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Tool %s panicked: %v", call.Name, r)
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", call.Name, r)}
			}
		}()
		result, err := tool.Execute(execCtx, call)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && execCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, &xerrors.ToolTimeoutError{Tool: call.Name, Timeout: c.timeout}
		}
		return out.result, out.err
	case <-execCtx.Done():
		if execCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, &xerrors.ToolTimeoutError{Tool: call.Name, Timeout: c.timeout}
		}
		return nil, execCtx.Err()
	}
}

func (c *ToolCoordinator) finish(ctx context.Context, inv *ports.ToolInvocation, correlationID string) {
	if inv.Duration == 0 {
		inv.Duration = c.clock.Now().Sub(inv.StartedAt)
	}
	c.metrics.ToolInvoked(inv.ToolName, string(inv.ResultKind), inv.Duration)
	c.logger.Debug("Tool %s attempt=%d result=%s duration=%s", inv.ToolName, inv.Attempt, inv.ResultKind, inv.Duration)

	if c.emitter != nil {
		c.emitter.Emit(ctx, &ToolInvokedEvent{
			BaseEvent:  newBaseEvent(inv.TaskID, correlationID, ports.CategoryTool, c.clock.Now()),
			Seq:        inv.StepSeq,
			CallID:     inv.CallID,
			ToolName:   inv.ToolName,
			Attempt:    inv.Attempt,
			ResultKind: inv.ResultKind,
			Error:      inv.ErrText,
			Duration:   inv.Duration,
		})
	}
}
