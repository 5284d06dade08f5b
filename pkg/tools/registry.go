// Package tools provides the registry of callable tools exposed to tool nodes.
package tools

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrToolNotFound indicates no tool is registered under the given name.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParameters indicates parameters do not satisfy the tool input schema.
	ErrInvalidParameters = errors.New("invalid tool parameters")
)

// HandlerFunc executes a tool.
type HandlerFunc func(ctx context.Context, parameters map[string]any) (any, error)

// Tool describes a callable tool. Handler may be nil for tools that are
// declared but not bound in this process.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Categories  []string
	Handler     HandlerFunc
}

// ValidateParameters checks parameters against the tool input schema.
func (t *Tool) ValidateParameters(parameters map[string]any) error {
	if len(t.InputSchema) == 0 {
		return nil
	}

	if parameters == nil {
		parameters = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(t.InputSchema), gojsonschema.NewGoLoader(parameters))
	if err != nil {
		return fmt.Errorf("failed to validate parameters for %s: %w", t.Name, err)
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidParameters, strings.Join(messages, "; "))
}

// Registry is an in-memory tool registry. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	usage map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
		usage: make(map[string]int),
	}
}

func (r *Registry) Register(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return errors.New("tool name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[tool.Name] = tool

	return nil
}

func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]

	return tool, ok
}

// RecordUsage increments the invocation counter of a tool.
func (r *Registry) RecordUsage(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.usage[name]++
}

func (r *Registry) Usage(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.usage[name]
}

// Names returns registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.tools))
}
