package builtin

import (
	"context"
	"fmt"
	"os"

	"aster/internal/engine/ports"
)

// maxReadSize bounds a single read so one file cannot flood the context.
const maxReadSize = 256 * 1024

// ReadFileTool returns file contents from the workspace.
type ReadFileTool struct {
	ws Workspace
}

// NewReadFileTool constructs the tool.
func NewReadFileTool(ws Workspace) *ReadFileTool {
	return &ReadFileTool{ws: ws}
}

func (t *ReadFileTool) Execute(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	path, err := t.ws.Resolve(stringArg(call.Arguments, "path"))
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("stat file: %w", err)}, nil
	}
	if info.IsDir() {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("%s is a directory", stringArg(call.Arguments, "path"))}, nil
	}
	if info.Size() > maxReadSize {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("file too large: %d bytes (limit %d)", info.Size(), maxReadSize)}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("read file: %w", err)}, nil
	}

	return &ports.ToolResult{
		CallID:  call.ID,
		Content: string(data),
		Metadata: map[string]any{
			"path":       stringArg(call.Arguments, "path"),
			"size_bytes": len(data),
		},
	}, nil
}

func (t *ReadFileTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "read_file",
		Description: "Read the contents of a file inside the workspace.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path": {
					Type:        "string",
					Description: "Workspace-relative path of the file to read.",
				},
			},
			Required: []string{"path"},
		},
	}
}

func (t *ReadFileTool) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name:     "read_file",
		Version:  "1.0.0",
		Category: "filesystem",
		ReadOnly: true,
	}
}
