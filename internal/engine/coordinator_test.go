package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"aster/internal/catalogue"
	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
	"aster/internal/logging"
)

type scriptedTool struct {
	def     ports.ToolDefinition
	meta    ports.ToolMetadata
	execute func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error)
}

func (t *scriptedTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	return t.execute(ctx, call)
}
func (t *scriptedTool) Definition() ports.ToolDefinition { return t.def }
func (t *scriptedTool) Metadata() ports.ToolMetadata     { return t.meta }

func newScriptedTool(name string, execute func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error)) *scriptedTool {
	return &scriptedTool{
		def: ports.ToolDefinition{
			Name: name,
			Parameters: ports.ParameterSchema{
				Type: "object",
				Properties: map[string]ports.Property{
					"text": {Type: "string", Description: "input"},
				},
				Required: []string{"text"},
			},
		},
		meta:    ports.ToolMetadata{Name: name},
		execute: execute,
	}
}

func newTestCoordinator(t *testing.T, timeout time.Duration, tools ...ports.Tool) *ToolCoordinator {
	t.Helper()
	registry := catalogue.NewRegistry()
	for _, tool := range tools {
		if err := registry.RegisterStatic(tool); err != nil {
			t.Fatalf("register tool: %v", err)
		}
	}
	return NewToolCoordinator(ToolCoordinatorConfig{
		Tools:   registry,
		Logger:  logging.Nop(),
		Timeout: timeout,
	})
}

func TestInvokeSuccess(t *testing.T) {
	tool := newScriptedTool("ok", func(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
		return &ports.ToolResult{CallID: call.ID, Content: "fine"}, nil
	})
	c := newTestCoordinator(t, time.Second, tool)

	inv, err := c.Invoke(context.Background(), ports.ToolCall{
		ID: "call-1", Name: "ok", Arguments: map[string]any{"text": "x"}, TaskID: "t1",
	}, 1, 1, "corr")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if inv.ResultKind != ports.InvocationSuccess {
		t.Fatalf("expected success, got %s (%s)", inv.ResultKind, inv.ErrText)
	}
	if inv.Content != "fine" {
		t.Fatalf("unexpected content %q", inv.Content)
	}
}

func TestInvokeUnknownToolIsAnError(t *testing.T) {
	c := newTestCoordinator(t, time.Second)

	_, err := c.Invoke(context.Background(), ports.ToolCall{Name: "missing"}, 1, 1, "corr")
	var notFound *xerrors.ToolNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ToolNotFoundError, got %v", err)
	}
}

func TestInvokeRejectsInvalidArgumentsBeforeDispatch(t *testing.T) {
	dispatched := false
	tool := newScriptedTool("strict", func(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
		dispatched = true
		return &ports.ToolResult{CallID: call.ID}, nil
	})
	c := newTestCoordinator(t, time.Second, tool)

	inv, err := c.Invoke(context.Background(), ports.ToolCall{
		Name: "strict", Arguments: map[string]any{"unknown": 1},
	}, 1, 1, "corr")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if inv.ResultKind != ports.InvocationRejected {
		t.Fatalf("expected rejected, got %s", inv.ResultKind)
	}
	if dispatched {
		t.Fatal("rejected call must not reach the tool")
	}
	var verr *xerrors.ValidationError
	if !errors.As(inv.Err, &verr) {
		t.Fatalf("expected ValidationError, got %v", inv.Err)
	}
}

func TestInvokeTimesOut(t *testing.T) {
	tool := newScriptedTool("slow", func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
		select {
		case <-time.After(2 * time.Second):
			return &ports.ToolResult{CallID: call.ID}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	c := newTestCoordinator(t, 30*time.Millisecond, tool)

	inv, err := c.Invoke(context.Background(), ports.ToolCall{
		Name: "slow", Arguments: map[string]any{"text": "x"},
	}, 1, 1, "corr")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if inv.ResultKind != ports.InvocationTimeout {
		t.Fatalf("expected timeout, got %s", inv.ResultKind)
	}
}

func TestInvokeToolErrorIsRecorded(t *testing.T) {
	tool := newScriptedTool("broken", func(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
		return nil, errors.New("disk on fire")
	})
	c := newTestCoordinator(t, time.Second, tool)

	inv, err := c.Invoke(context.Background(), ports.ToolCall{
		Name: "broken", Arguments: map[string]any{"text": "x"},
	}, 1, 1, "corr")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if inv.ResultKind != ports.InvocationError {
		t.Fatalf("expected error kind, got %s", inv.ResultKind)
	}
	if inv.ErrText != "disk on fire" {
		t.Fatalf("unexpected error text %q", inv.ErrText)
	}
}

func TestInvokeRecoversFromPanic(t *testing.T) {
	tool := newScriptedTool("panicky", func(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
		panic("boom")
	})
	c := newTestCoordinator(t, time.Second, tool)

	inv, err := c.Invoke(context.Background(), ports.ToolCall{
		Name: "panicky", Arguments: map[string]any{"text": "x"},
	}, 1, 1, "corr")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if inv.ResultKind != ports.InvocationError {
		t.Fatalf("expected error kind after panic, got %s", inv.ResultKind)
	}
}

func TestInvokeResultLevelError(t *testing.T) {
	tool := newScriptedTool("softfail", func(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
		return &ports.ToolResult{CallID: call.ID, Content: "partial", Error: errors.New("quota hit")}, nil
	})
	c := newTestCoordinator(t, time.Second, tool)

	inv, err := c.Invoke(context.Background(), ports.ToolCall{
		Name: "softfail", Arguments: map[string]any{"text": "x"},
	}, 1, 1, "corr")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if inv.ResultKind != ports.InvocationError {
		t.Fatalf("expected error kind, got %s", inv.ResultKind)
	}
	if inv.Content != "partial" {
		t.Fatalf("partial content lost: %q", inv.Content)
	}
}
