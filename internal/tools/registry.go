package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Registry stores tool definitions keyed by tool name.
type Registry struct {
	mu   sync.RWMutex
	defs map[Name]Definition
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[Name]Definition),
	}
}

// Register adds a new tool definition.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil && !IsControl(def.Name) {
		return fmt.Errorf("handler is required for %s", def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// MustRegister adds a definition or panics.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name Name) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Definitions returns the definitions for names in the given order. Unknown
// names are reported as an error.
func (r *Registry) Definitions(names ...Name) ([]Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(names))
	for _, n := range names {
		def, ok := r.defs[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, n)
		}
		out = append(out, def)
	}
	return out, nil
}

// Names lists every registered tool, sorted.
func (r *Registry) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Name, 0, len(r.defs))
	for n := range r.defs {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Execute runs the handler registered for name. Every failure other than an
// unknown name is returned as an *ExecutionError.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: tool name is required", ErrUnknownTool)
	}
	def, ok := r.Lookup(Name(name))
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if def.Handler == nil {
		return "", &ExecutionError{Tool: def.Name, Err: fmt.Errorf("%s is a routing tool and cannot be executed", name)}
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	out, err := def.Handler(ctx, args)
	if err != nil {
		return "", &ExecutionError{Tool: def.Name, Err: err}
	}
	return out, nil
}
