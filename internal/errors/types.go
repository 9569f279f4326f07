package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Kind classifies engine errors for event recording and retry policy.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindToolNotFound       Kind = "tool_not_found"
	KindToolTimeout        Kind = "tool_timeout"
	KindMalformedOutput    Kind = "malformed_model_output"
	KindUnparseableVerdict Kind = "unparseable_verdict"
	KindConflict           Kind = "conflict"
	KindInternal           Kind = "internal"
)

// ValidationError reports tool arguments that violate the declared schema.
// It is never retried; the step continues with an error-shaped context
// entry so the model can self-correct.
type ValidationError struct {
	Tool     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

// ToolNotFoundError reports a requested tool missing from the catalogue.
type ToolNotFoundError struct {
	Tool string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Tool)
}

// ToolTimeoutError reports a tool call that exceeded its invocation timeout.
type ToolTimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (e *ToolTimeoutError) Error() string {
	return fmt.Sprintf("tool %s timed out after %s", e.Tool, e.Timeout)
}

// MalformedOutputError reports a model response that could not be
// classified as any recognized shape, after the corrective retry.
type MalformedOutputError struct {
	Detail string
}

func (e *MalformedOutputError) Error() string {
	if e.Detail == "" {
		return "malformed model output"
	}
	return fmt.Sprintf("malformed model output: %s", e.Detail)
}

// UnparseableVerdictError reports goal-evaluation text with no structured
// verdict payload. Callers treat it as "goal not yet met".
type UnparseableVerdictError struct {
	Text string
}

func (e *UnparseableVerdictError) Error() string {
	return "no structured verdict found in model response"
}

// ConflictError reports a concurrent-run or concurrent-HITL violation.
// Rejected immediately, never retried.
type ConflictError struct {
	Resource string
	Detail   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Resource, e.Detail)
}

// TransientError marks an error as retryable regardless of its type.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient error: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// Classify maps an error to its taxonomy kind. Unrecognized errors are
// internal (fatal for the task).
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case is[*ValidationError](err):
		return KindValidation
	case is[*ToolNotFoundError](err):
		return KindToolNotFound
	case is[*ToolTimeoutError](err):
		return KindToolTimeout
	case is[*MalformedOutputError](err):
		return KindMalformedOutput
	case is[*UnparseableVerdictError](err):
		return KindUnparseableVerdict
	case is[*ConflictError](err):
		return KindConflict
	default:
		return KindInternal
	}
}

func is[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// IsConflict reports whether err is a concurrency-conflict rejection.
func IsConflict(err error) bool { return is[*ConflictError](err) }

// IsToolTimeout reports whether err is a tool invocation timeout.
func IsToolTimeout(err error) bool { return is[*ToolTimeoutError](err) }

// IsUnparseableVerdict reports whether err is a verdict parse failure.
func IsUnparseableVerdict(err error) bool { return is[*UnparseableVerdictError](err) }

// IsTransient reports whether the error is worth retrying: explicitly
// marked transient errors, tool timeouts, deadline expiries and network
// failures qualify. The rest of the taxonomy never does.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	if is[*ToolTimeoutError](err) {
		return true
	}
	switch Classify(err) {
	case KindValidation, KindToolNotFound, KindMalformedOutput, KindUnparseableVerdict, KindConflict:
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
