package builtin

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"aster/internal/engine/ports"
)

// ListDirTool lists a workspace directory, one entry per line with
// directories suffixed by a slash.
type ListDirTool struct {
	ws Workspace
}

// NewListDirTool constructs the tool.
func NewListDirTool(ws Workspace) *ListDirTool {
	return &ListDirTool{ws: ws}
}

func (t *ListDirTool) Execute(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	rel := stringArg(call.Arguments, "path")
	if rel == "" {
		rel = "."
	}
	path, err := t.ws.Resolve(rel)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("read dir: %w", err)}, nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return &ports.ToolResult{
		CallID:  call.ID,
		Content: strings.Join(names, "\n"),
		Metadata: map[string]any{
			"path":    rel,
			"entries": len(names),
		},
	}, nil
}

func (t *ListDirTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "list_dir",
		Description: "List the entries of a workspace directory.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path": {
					Type:        "string",
					Description: "Workspace-relative directory path. Defaults to the workspace root.",
				},
			},
		},
	}
}

func (t *ListDirTool) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name:     "list_dir",
		Version:  "1.0.0",
		Category: "filesystem",
		ReadOnly: true,
	}
}
