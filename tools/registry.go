package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Sentinel errors for tool lookup and invocation.
var (
	ErrUnknownTool      = errors.New("tools: unknown tool")
	ErrDuplicateTool    = errors.New("tools: tool already registered")
	ErrInvalidTool      = errors.New("tools: invalid tool")
	ErrInvalidArguments = errors.New("tools: invalid arguments")
)

// HandlerFunc executes a tool with its raw JSON arguments.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is a named, invocable operation.
type Tool struct {
	Name        string
	Namespace   string
	Description string

	// Tags classify the tool. Tools tagged with a side-effect tag such as
	// "write" are never served from the result cache.
	Tags []string

	Handler HandlerFunc
}

// Registry holds tools by name.
//
// Contract:
// - Concurrency: safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Names are unique.
func (r *Registry) Register(t Tool) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" || t.Handler == nil {
		return fmt.Errorf("%w: name and handler are required", ErrInvalidTool)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, t.Name)
	}
	t.Tags = slices.Clone(t.Tags)
	r.tools[t.Name] = t
	return nil
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b Tool) int { return strings.Compare(a.Name, b.Name) })
	return out
}
