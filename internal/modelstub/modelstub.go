// Package modelstub provides a scripted model client for tests and
// offline demos. Responses are played back in order; running past the
// script is an error so tests catch unexpected extra turns.
package modelstub

import (
	"context"
	"fmt"
	"sync"

	"aster/internal/engine/ports"
)

// Client replays a fixed sequence of completion responses.
type Client struct {
	mu        sync.Mutex
	responses []ports.CompletionResponse
	calls     []ports.CompletionRequest
	next      int
	model     string
}

// New constructs a client that plays back the given responses.
func New(responses ...ports.CompletionResponse) *Client {
	return &Client{responses: responses, model: "scripted"}
}

// Text is a plain-text scripted turn.
func Text(content string) ports.CompletionResponse {
	return ports.CompletionResponse{
		Content:    content,
		StopReason: "stop",
		Usage:      ports.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// ToolCalls is a scripted turn requesting the given calls.
func ToolCalls(calls ...ports.ToolCall) ports.CompletionResponse {
	return ports.CompletionResponse{
		ToolCalls:  calls,
		StopReason: "tool_use",
		Usage:      ports.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// Verdict is a scripted goal-check reply.
func Verdict(met bool, rationale string) ports.CompletionResponse {
	return Text(fmt.Sprintf(`{"goal_met": %t, "rationale": %q}`, met, rationale))
}

func (c *Client) Complete(_ context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	if c.next >= len(c.responses) {
		return nil, fmt.Errorf("scripted client exhausted after %d responses", len(c.responses))
	}
	resp := c.responses[c.next]
	c.next++
	return &resp, nil
}

func (c *Client) Model() string { return c.model }

// Calls returns every request seen so far.
func (c *Client) Calls() []ports.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ports.CompletionRequest, len(c.calls))
	copy(out, c.calls)
	return out
}

// Remaining reports how many scripted responses are unplayed.
func (c *Client) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.responses) - c.next
}
