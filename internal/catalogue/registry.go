package catalogue

import (
	"sort"
	"strings"
	"sync"

	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
)

const mcpPrefix = "mcp__"

// Registry implements ports.Catalogue with three tool tiers: static
// builtins, dynamically registered tools and MCP-contributed tools.
// The registry is shared read-only by all concurrently running tasks.
type Registry struct {
	static  map[string]ports.Tool
	dynamic map[string]ports.Tool
	mcp     map[string]ports.Tool
	mu      sync.RWMutex
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		static:  make(map[string]ports.Tool),
		dynamic: make(map[string]ports.Tool),
		mcp:     make(map[string]ports.Tool),
	}
}

// RegisterStatic adds a builtin tool. Static tools cannot be unregistered.
func (r *Registry) RegisterStatic(tool ports.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Metadata().Name
	if _, exists := r.static[name]; exists {
		return &xerrors.ConflictError{Resource: "tool", Detail: "already registered: " + name}
	}
	r.static[name] = tool
	return nil
}

func (r *Registry) Register(tool ports.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Metadata().Name
	if _, exists := r.static[name]; exists {
		return &xerrors.ConflictError{Resource: "tool", Detail: "already registered: " + name}
	}

	if strings.HasPrefix(name, mcpPrefix) {
		r.mcp[name] = tool
	} else {
		r.dynamic[name] = tool
	}
	return nil
}

func (r *Registry) Get(name string) (ports.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tool, ok := r.static[name]; ok {
		return tool, nil
	}
	if tool, ok := r.dynamic[name]; ok {
		return tool, nil
	}
	if tool, ok := r.mcp[name]; ok {
		return tool, nil
	}
	return nil, &xerrors.ToolNotFoundError{Tool: name}
}

func (r *Registry) List() []ports.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ports.ToolDefinition, 0, len(r.static)+len(r.dynamic)+len(r.mcp))
	for _, tier := range []map[string]ports.Tool{r.static, r.dynamic, r.mcp} {
		for _, tool := range tier {
			defs = append(defs, tool.Definition())
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.dynamic[name]; ok {
		delete(r.dynamic, name)
		return nil
	}
	if _, ok := r.mcp[name]; ok {
		delete(r.mcp, name)
		return nil
	}
	return &xerrors.ToolNotFoundError{Tool: name}
}

// Without returns a filtered, read-only view of the registry that excludes
// the named tools. Used to hand sub-contexts a reduced catalogue.
func (r *Registry) Without(names ...string) ports.Catalogue {
	exclude := make(map[string]bool, len(names))
	for _, name := range names {
		exclude[name] = true
	}
	return &filteredRegistry{parent: r, exclude: exclude}
}

type filteredRegistry struct {
	parent  *Registry
	exclude map[string]bool
}

func (f *filteredRegistry) Get(name string) (ports.Tool, error) {
	if f.exclude[name] {
		return nil, &xerrors.ToolNotFoundError{Tool: name}
	}
	return f.parent.Get(name)
}

func (f *filteredRegistry) List() []ports.ToolDefinition {
	all := f.parent.List()
	defs := make([]ports.ToolDefinition, 0, len(all))
	for _, def := range all {
		if !f.exclude[def.Name] {
			defs = append(defs, def)
		}
	}
	return defs
}

func (f *filteredRegistry) Register(ports.Tool) error {
	return &xerrors.ConflictError{Resource: "catalogue", Detail: "filtered view is read-only"}
}

func (f *filteredRegistry) Unregister(string) error {
	return &xerrors.ConflictError{Resource: "catalogue", Detail: "filtered view is read-only"}
}
