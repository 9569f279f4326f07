package ports

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Tool executes a single tool call.
type Tool interface {
	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, call ToolCall) (*ToolResult, error)

	// Definition returns the tool's schema for the model.
	Definition() ToolDefinition

	// Metadata returns tool metadata.
	Metadata() ToolMetadata
}

// Catalogue manages the tools visible to a task. It is constructed
// explicitly and shared read-only by concurrently running tasks.
type Catalogue interface {
	// Register adds a tool to the catalogue.
	Register(tool Tool) error

	// Get retrieves a tool by name.
	Get(name string) (Tool, error)

	// List returns definitions for every available tool.
	List() []ToolDefinition

	// Unregister removes a tool.
	Unregister(name string) error
}

// ToolCall represents a request to execute a tool.
type ToolCall struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Arguments      map[string]any `json:"arguments"`
	TaskID         string         `json:"task_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
}

// ArtifactSpec is a by-product declared by a tool alongside its result.
// The artifact processor decides how each spec is materialized.
type ArtifactSpec struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"` // e.g. "file_diff", "file", "structured", "text"
	Content   string `json:"content"`
	MediaType string `json:"media_type,omitempty"`
	Durable   bool   `json:"durable"` // flagged by the tool as a task output
}

// ToolResult is the raw execution result returned by a tool.
type ToolResult struct {
	CallID    string         `json:"call_id"`
	Content   string         `json:"content"`
	Error     error          `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Artifacts []ArtifactSpec `json:"artifacts,omitempty"`
}

// MarshalJSON customizes ToolResult encoding to support the error interface.
func (r ToolResult) MarshalJSON() ([]byte, error) {
	type alias struct {
		CallID    string         `json:"call_id"`
		Content   string         `json:"content"`
		Error     any            `json:"error,omitempty"`
		Metadata  map[string]any `json:"metadata,omitempty"`
		Artifacts []ArtifactSpec `json:"artifacts,omitempty"`
	}

	a := alias{
		CallID:    r.CallID,
		Content:   r.Content,
		Metadata:  r.Metadata,
		Artifacts: r.Artifacts,
	}
	if r.Error != nil {
		a.Error = r.Error.Error()
	}
	return json.Marshal(a)
}

// UnmarshalJSON accepts both string and object error representations.
func (r *ToolResult) UnmarshalJSON(data []byte) error {
	type alias struct {
		CallID    string          `json:"call_id"`
		Content   string          `json:"content"`
		Error     json.RawMessage `json:"error"`
		Metadata  map[string]any  `json:"metadata,omitempty"`
		Artifacts []ArtifactSpec  `json:"artifacts,omitempty"`
	}

	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.CallID = aux.CallID
	r.Content = aux.Content
	r.Metadata = aux.Metadata
	r.Artifacts = aux.Artifacts
	r.Error = nil

	raw := strings.TrimSpace(string(aux.Error))
	if raw == "" || raw == "null" {
		return nil
	}

	var errStr string
	if err := json.Unmarshal(aux.Error, &errStr); err == nil {
		if errStr != "" {
			r.Error = errors.New(errStr)
		}
		return nil
	}

	var errObj map[string]any
	if err := json.Unmarshal(aux.Error, &errObj); err == nil {
		if msg, ok := errObj["message"].(string); ok && msg != "" {
			r.Error = errors.New(msg)
			return nil
		}
	}

	r.Error = errors.New(raw)
	return nil
}

// ToolDefinition describes a tool for the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ToolMetadata contains tool bookkeeping information.
type ToolMetadata struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags,omitempty"`
	Dangerous bool     `json:"dangerous"`
	ReadOnly  bool     `json:"read_only"`
}

// ParameterSchema defines tool parameters (JSON Schema format).
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Enum        []any  `json:"enum,omitempty"`
}
