package engine

import (
	"strings"

	"aster/internal/engine/ports"
)

// AskHumanTool is the reserved pseudo-tool the model calls to request
// human input. It is advertised in the catalogue definitions but never
// dispatched; the step loop intercepts it and routes through the HITL
// gateway instead.
const AskHumanTool = "ask_human"

// ResponseShape is the total classification of a model turn. Every
// response maps to exactly one shape.
type ResponseShape string

const (
	// ShapeToolCalls - the model requested one or more real tool calls.
	ShapeToolCalls ResponseShape = "tool_calls"
	// ShapeHumanInput - the model invoked the ask_human pseudo-tool.
	ShapeHumanInput ResponseShape = "human_input"
	// ShapeText - plain assistant text, treated as a final-answer candidate.
	ShapeText ResponseShape = "text"
	// ShapeMalformed - no content and no calls; eligible for one
	// corrective retry before the step fails.
	ShapeMalformed ResponseShape = "malformed"
)

// ClassifiedResponse is a model response broken down by shape. When the
// model both calls tools and emits text, the calls win: acting first is
// always safe because the goal check runs after observation anyway.
type ClassifiedResponse struct {
	Shape       ResponseShape
	Text        string
	ToolCalls   []ports.ToolCall
	HumanPrompt string
}

// ClassifyResponse maps a completion response to its shape. The mapping
// is total and deterministic.
func ClassifyResponse(resp *ports.CompletionResponse) ClassifiedResponse {
	if resp == nil {
		return ClassifiedResponse{Shape: ShapeMalformed}
	}

	text := strings.TrimSpace(resp.Content)

	if len(resp.ToolCalls) > 0 {
		if prompt, ok := extractHumanPrompt(resp.ToolCalls); ok {
			return ClassifiedResponse{Shape: ShapeHumanInput, Text: text, HumanPrompt: prompt}
		}
		calls := make([]ports.ToolCall, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			if call.Name == AskHumanTool {
				continue
			}
			calls = append(calls, call)
		}
		if len(calls) > 0 {
			return ClassifiedResponse{Shape: ShapeToolCalls, Text: text, ToolCalls: calls}
		}
	}

	if text != "" {
		return ClassifiedResponse{Shape: ShapeText, Text: text}
	}
	return ClassifiedResponse{Shape: ShapeMalformed}
}

// extractHumanPrompt finds the first ask_human call. Mixing ask_human
// with real tool calls yields human input: the loop cannot both suspend
// and act, and suspension preserves the most context.
func extractHumanPrompt(calls []ports.ToolCall) (string, bool) {
	for _, call := range calls {
		if call.Name != AskHumanTool {
			continue
		}
		if q, ok := call.Arguments["question"].(string); ok && strings.TrimSpace(q) != "" {
			return strings.TrimSpace(q), true
		}
		if p, ok := call.Arguments["prompt"].(string); ok && strings.TrimSpace(p) != "" {
			return strings.TrimSpace(p), true
		}
		return "The agent needs your input to continue.", true
	}
	return "", false
}

// AskHumanDefinition is the catalogue-facing schema for the reserved
// pseudo-tool.
func AskHumanDefinition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        AskHumanTool,
		Description: "Ask the human operator a question and wait for their answer. Use only when you cannot proceed without information the tools cannot provide.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"question": {
					Type:        "string",
					Description: "The question to ask the human.",
				},
			},
			Required: []string{"question"},
		},
	}
}
