package ports

import "context"

// ModelClient represents any LLM provider behind a provider-agnostic
// completion contract. Wire adapters live outside the engine.
type ModelClient interface {
	// Complete sends messages plus the tool catalogue and returns a response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Model returns the model identifier.
	Model() string
}

// StreamChunk is a single delta from a streaming completion.
type StreamChunk struct {
	Delta string `json:"delta"`
	Done  bool   `json:"done"`
}

// StreamingModelClient is the streaming variant of the completion contract.
type StreamingModelClient interface {
	ModelClient

	// CompleteStream invokes fn for every delta. The final chunk has Done set.
	CompleteStream(ctx context.Context, req CompletionRequest, fn func(StreamChunk)) (*CompletionResponse, error)
}

// CompletionRequest contains all parameters for a model completion.
type CompletionRequest struct {
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

// CompletionResponse is the model's response.
type CompletionResponse struct {
	Content    string         `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	StopReason string         `json:"stop_reason,omitempty"`
	Usage      TokenUsage     `json:"usage"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TokenUsage tracks token consumption for one completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// MessageSource records where a conversation message came from.
type MessageSource string

const (
	MessageSourceSystemPrompt MessageSource = "system_prompt"
	MessageSourceUserInput    MessageSource = "user_input"
	MessageSourceAssistant    MessageSource = "assistant_reply"
	MessageSourceToolResult   MessageSource = "tool_result"
	MessageSourceHumanAnswer  MessageSource = "human_answer"
	MessageSourceEngine       MessageSource = "engine"
)

// Message represents a conversation message.
type Message struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Source     MessageSource  `json:"source,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
