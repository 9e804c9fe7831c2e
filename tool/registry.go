package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/youssefsiam38/agentctx/types"
)

// Registry holds the tools available to an agent. It is safe for
// concurrent use.
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. Names must be unique and schemas must describe an
// object.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("%w: tool cannot be nil", ErrInvalidTool)
	}

	name := t.Name()
	if name == "" {
		return fmt.Errorf("%w: tool name cannot be empty", ErrInvalidTool)
	}
	if schema := t.InputSchema(); schema.Type != "object" {
		return fmt.Errorf("%w: tool %s: schema type must be 'object', got %q", ErrInvalidTool, name, schema.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = t
	return nil
}

// RegisterAll adds several tools, stopping at the first error.
func (r *Registry) RegisterAll(tools ...Tool) error {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns the engine-facing definitions, sorted by name so
// prompts are stable across calls.
func (r *Registry) Definitions() []types.ToolDefinition {
	names := r.Names()
	defs := make([]types.ToolDefinition, 0, len(names))
	for _, name := range names {
		if t, ok := r.Get(name); ok {
			defs = append(defs, Definition(t))
		}
	}
	return defs
}
