// ABOUTME: Explicit registry mapping tool names to definitions and handlers
// ABOUTME: Constructed at startup and passed into the dispatch gateway, never global

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// Handler executes one tool call on behalf of the authenticated user.
// The user ID is injected by the dispatcher from the resolved credential;
// handlers must never trust an identity claimed inside input.
type Handler func(ctx context.Context, userID string, input json.RawMessage) (json.RawMessage, error)

// Tool pairs a definition with its handler.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// Registry holds the available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds tools to the registry.
// Returns ErrToolCollision if any name is already taken.
func (r *Registry) Register(tools ...*Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tool := range tools {
		if _, exists := r.tools[tool.Name]; exists {
			return fmt.Errorf("%w: %s", ErrToolCollision, tool.Name)
		}
	}
	for _, tool := range tools {
		r.tools[tool.Name] = tool
	}
	return nil
}

// Get returns a tool by name.
// Returns ErrToolNotFound if no tool with that name is registered.
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool, nil
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}
