package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"validation", &ValidationError{Tool: "echo", Problems: []string{"text is required"}}, KindValidation},
		{"not found", &ToolNotFoundError{Tool: "missing"}, KindToolNotFound},
		{"timeout", &ToolTimeoutError{Tool: "slow", Timeout: time.Second}, KindToolTimeout},
		{"malformed", &MalformedOutputError{}, KindMalformedOutput},
		{"verdict", &UnparseableVerdictError{}, KindUnparseableVerdict},
		{"conflict", &ConflictError{Resource: "task"}, KindConflict},
		{"unknown", stderrors.New("anything"), KindInternal},
		{"wrapped conflict", fmt.Errorf("outer: %w", &ConflictError{Resource: "task"}), KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	transient := []error{
		&TransientError{Err: stderrors.New("flaky")},
		&ToolTimeoutError{Tool: "slow", Timeout: time.Second},
		context.DeadlineExceeded,
		fmt.Errorf("wrapped: %w", context.DeadlineExceeded),
	}
	for _, err := range transient {
		if !IsTransient(err) {
			t.Errorf("IsTransient(%v) = false, want true", err)
		}
	}

	permanent := []error{
		nil,
		&ValidationError{Tool: "echo"},
		&ToolNotFoundError{Tool: "missing"},
		&MalformedOutputError{},
		&UnparseableVerdictError{},
		&ConflictError{Resource: "task"},
		stderrors.New("plain"),
	}
	for _, err := range permanent {
		if IsTransient(err) {
			t.Errorf("IsTransient(%v) = true, want false", err)
		}
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Tool: "echo", Problems: []string{"text is required", "unknown parameter mode"}}
	want := "invalid arguments for tool echo: text is required; unknown parameter mode"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
