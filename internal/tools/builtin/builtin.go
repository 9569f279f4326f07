// Package builtin provides the filesystem tools shipped with the engine.
// All paths are resolved inside a workspace root; escapes are rejected
// before any I/O happens.
package builtin

import (
	"fmt"
	"path/filepath"
	"strings"

	"aster/internal/catalogue"
	"aster/internal/engine/ports"
)

// Workspace scopes the builtin tools to one directory tree.
type Workspace struct {
	Root string
}

// Resolve maps a tool-supplied relative path to an absolute path inside
// the workspace.
func (w Workspace) Resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", rel)
	}
	abs := filepath.Join(w.Root, filepath.Clean(rel))
	rootAbs, err := filepath.Abs(w.Root)
	if err != nil {
		return "", err
	}
	absClean, err := filepath.Abs(abs)
	if err != nil {
		return "", err
	}
	if absClean != rootAbs && !strings.HasPrefix(absClean, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the workspace: %s", rel)
	}
	return absClean, nil
}

// Register adds every builtin tool to the registry, with the result cache
// applied per the config.
func Register(registry *catalogue.Registry, ws Workspace, cacheCfg catalogue.CacheConfig) error {
	tools := []ports.Tool{
		NewReadFileTool(ws),
		NewWriteFileTool(ws),
		NewListDirTool(ws),
	}
	for _, tool := range tools {
		if err := registry.RegisterStatic(catalogue.WithResultCache(tool, cacheCfg)); err != nil {
			return fmt.Errorf("register %s: %w", tool.Metadata().Name, err)
		}
	}
	return nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
