package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"aster/internal/diff"
	"aster/internal/engine/ports"
)

// WriteFileTool creates or overwrites a file in the workspace. Each write
// declares two artifacts: a durable copy of the written file and a
// context-only unified diff against the previous contents.
type WriteFileTool struct {
	ws Workspace
}

// NewWriteFileTool constructs the tool.
func NewWriteFileTool(ws Workspace) *WriteFileTool {
	return &WriteFileTool{ws: ws}
}

func (t *WriteFileTool) Execute(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	relPath := stringArg(call.Arguments, "path")
	content := stringArg(call.Arguments, "content")

	path, err := t.ws.Resolve(relPath)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}

	var before string
	if data, err := os.ReadFile(path); err == nil {
		before = string(data)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("create parent dirs: %w", err)}, nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("write file: %w", err)}, nil
	}

	d := diff.Unified(before, content, relPath)
	artifacts := []ports.ArtifactSpec{
		{
			Name:      relPath,
			Kind:      "file",
			Content:   content,
			MediaType: "text/plain",
			Durable:   true,
		},
	}
	if d.Unified != "" {
		artifacts = append(artifacts, ports.ArtifactSpec{
			Name:      relPath + ".diff",
			Kind:      "file_diff",
			Content:   d.Unified,
			MediaType: "text/x-diff",
		})
	}

	return &ports.ToolResult{
		CallID:  call.ID,
		Content: fmt.Sprintf("Wrote %d bytes to %s (%s)", len(content), relPath, d.Summary()),
		Metadata: map[string]any{
			"path":          relPath,
			"size_bytes":    len(content),
			"added_lines":   d.AddedLines,
			"deleted_lines": d.DeletedLines,
		},
		Artifacts: artifacts,
	}, nil
}

func (t *WriteFileTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "write_file",
		Description: "Create or overwrite a file inside the workspace with the given content.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path": {
					Type:        "string",
					Description: "Workspace-relative path of the file to write.",
				},
				"content": {
					Type:        "string",
					Description: "Full content to write.",
				},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *WriteFileTool) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name:     "write_file",
		Version:  "1.0.0",
		Category: "filesystem",
	}
}
