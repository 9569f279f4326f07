package builtin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aster/internal/catalogue"
	"aster/internal/engine/ports"
)

func testWorkspace(t *testing.T) Workspace {
	t.Helper()
	return Workspace{Root: t.TempDir()}
}

func TestWorkspaceResolve(t *testing.T) {
	ws := testWorkspace(t)

	abs, err := ws.Resolve("sub/file.txt")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.HasPrefix(abs, ws.Root) {
		t.Fatalf("resolved path %q escapes root %q", abs, ws.Root)
	}

	// "." resolves to the root itself.
	if _, err := ws.Resolve("."); err != nil {
		t.Fatalf("resolve dot: %v", err)
	}

	rejected := []string{"", "/etc/passwd", "../outside", "a/../../outside"}
	for _, rel := range rejected {
		if _, err := ws.Resolve(rel); err == nil {
			t.Errorf("Resolve(%q) should be rejected", rel)
		}
	}
}

func TestReadFileTool(t *testing.T) {
	ws := testWorkspace(t)
	if err := os.WriteFile(filepath.Join(ws.Root, "hello.txt"), []byte("hi there"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	tool := NewReadFileTool(ws)
	ctx := context.Background()

	result, err := tool.Execute(ctx, ports.ToolCall{ID: "c1", Arguments: map[string]any{"path": "hello.txt"}})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Error != nil {
		t.Fatalf("result error: %v", result.Error)
	}
	if result.Content != "hi there" {
		t.Fatalf("content = %q", result.Content)
	}

	// Missing files and directories come back as result-level errors, not
	// Go errors.
	result, err = tool.Execute(ctx, ports.ToolCall{Arguments: map[string]any{"path": "absent.txt"}})
	if err != nil || result.Error == nil {
		t.Fatalf("missing file: err=%v result.Error=%v", err, result.Error)
	}
	_ = os.Mkdir(filepath.Join(ws.Root, "d"), 0o755)
	result, _ = tool.Execute(ctx, ports.ToolCall{Arguments: map[string]any{"path": "d"}})
	if result.Error == nil {
		t.Fatal("reading a directory should fail")
	}
}

func TestReadFileToolSizeLimit(t *testing.T) {
	ws := testWorkspace(t)
	big := make([]byte, maxReadSize+1)
	if err := os.WriteFile(filepath.Join(ws.Root, "big.bin"), big, 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	tool := NewReadFileTool(ws)

	result, err := tool.Execute(context.Background(), ports.ToolCall{Arguments: map[string]any{"path": "big.bin"}})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Error == nil || !strings.Contains(result.Error.Error(), "too large") {
		t.Fatalf("oversized file should be rejected: %v", result.Error)
	}
}

func TestWriteFileToolCreatesAndDiffs(t *testing.T) {
	ws := testWorkspace(t)
	tool := NewWriteFileTool(ws)
	ctx := context.Background()

	// First write creates parents and declares a durable file artifact plus
	// a diff artifact.
	result, err := tool.Execute(ctx, ports.ToolCall{ID: "c1", Arguments: map[string]any{
		"path": "notes/a.txt", "content": "first\n",
	}})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Error != nil {
		t.Fatalf("result error: %v", result.Error)
	}
	data, err := os.ReadFile(filepath.Join(ws.Root, "notes", "a.txt"))
	if err != nil || string(data) != "first\n" {
		t.Fatalf("file content: %q err=%v", data, err)
	}

	var file, patch *ports.ArtifactSpec
	for i := range result.Artifacts {
		switch result.Artifacts[i].Kind {
		case "file":
			file = &result.Artifacts[i]
		case "file_diff":
			patch = &result.Artifacts[i]
		}
	}
	if file == nil || !file.Durable {
		t.Fatalf("expected a durable file artifact: %+v", result.Artifacts)
	}
	if patch == nil || patch.Durable {
		t.Fatalf("expected a context-only diff artifact: %+v", result.Artifacts)
	}

	// Overwriting produces a diff against the previous contents.
	result, _ = tool.Execute(ctx, ports.ToolCall{ID: "c2", Arguments: map[string]any{
		"path": "notes/a.txt", "content": "second\n",
	}})
	found := false
	for _, spec := range result.Artifacts {
		if spec.Kind == "file_diff" && strings.Contains(spec.Content, "@@") {
			found = true
		}
	}
	if !found {
		t.Fatalf("overwrite missing diff artifact: %+v", result.Artifacts)
	}
}

func TestWriteFileToolRejectsEscape(t *testing.T) {
	ws := testWorkspace(t)
	tool := NewWriteFileTool(ws)

	result, err := tool.Execute(context.Background(), ports.ToolCall{Arguments: map[string]any{
		"path": "../escape.txt", "content": "x",
	}})
	if err != nil || result.Error == nil {
		t.Fatalf("escape should be a result-level error: err=%v result.Error=%v", err, result.Error)
	}
	if _, err := os.Stat(filepath.Join(ws.Root, "..", "escape.txt")); !os.IsNotExist(err) {
		t.Fatal("file written outside the workspace")
	}
}

func TestListDirTool(t *testing.T) {
	ws := testWorkspace(t)
	_ = os.Mkdir(filepath.Join(ws.Root, "sub"), 0o755)
	_ = os.WriteFile(filepath.Join(ws.Root, "b.txt"), []byte("b"), 0o644)
	_ = os.WriteFile(filepath.Join(ws.Root, "a.txt"), []byte("a"), 0o644)
	tool := NewListDirTool(ws)

	result, err := tool.Execute(context.Background(), ports.ToolCall{Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Error != nil {
		t.Fatalf("result error: %v", result.Error)
	}
	want := "a.txt\nb.txt\nsub/"
	if result.Content != want {
		t.Fatalf("listing = %q, want %q", result.Content, want)
	}
}

func TestRegisterExposesAllBuiltins(t *testing.T) {
	registry := catalogue.NewRegistry()
	if err := Register(registry, testWorkspace(t), catalogue.DefaultCacheConfig()); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, name := range []string{"read_file", "write_file", "list_dir"} {
		if _, err := registry.Get(name); err != nil {
			t.Errorf("builtin %s missing: %v", name, err)
		}
	}
	// Builtins are static; a dynamic tool cannot shadow them.
	if err := registry.Register(fakeShadow{}); err == nil {
		t.Fatal("shadowing a builtin should fail")
	}
}

type fakeShadow struct{}

func (fakeShadow) Execute(context.Context, ports.ToolCall) (*ports.ToolResult, error) {
	return nil, nil
}
func (fakeShadow) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{Name: "read_file"}
}
func (fakeShadow) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{Name: "read_file"}
}
