// Package agents provides the agent registry used by agent nodes.
package agents

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"unicode"
)

// GeneralAgentName is the agent used when nothing more specific matches.
const GeneralAgentName = "general"

// Agent performs a task described in natural language.
type Agent interface {
	Name() string
	// Capabilities returns keywords used for task matching
	Capabilities() []string
	Execute(ctx context.Context, task string, taskContext map[string]any) (map[string]any, error)
}

// Func adapts a function to the Agent interface.
type Func struct {
	AgentName string
	Keywords  []string
	Fn        func(ctx context.Context, task string, taskContext map[string]any) (map[string]any, error)
}

func (f *Func) Name() string           { return f.AgentName }
func (f *Func) Capabilities() []string { return f.Keywords }

func (f *Func) Execute(ctx context.Context, task string, taskContext map[string]any) (map[string]any, error) {
	return f.Fn(ctx, task, taskContext)
}

// Registry is an in-memory agent registry. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

func (r *Registry) Register(agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents[agent.Name()] = agent
}

// GetAgent returns the agent registered under the exact name.
func (r *Registry) GetAgent(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[name]

	return agent, ok
}

// GetAgentForTask returns the agent whose capabilities overlap most with the
// words of task. Ties are broken by name. The general agent only matches by
// name, never by keywords.
func (r *Registry) GetAgentForTask(task string) (Agent, bool) {
	words := tokenize(task)
	if len(words) == 0 {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best      Agent
		bestScore int
	)

	for _, name := range slices.Sorted(maps.Keys(r.agents)) {
		if name == GeneralAgentName {
			continue
		}

		agent := r.agents[name]

		score := 0
		for _, capability := range agent.Capabilities() {
			if words[strings.ToLower(capability)] {
				score++
			}
		}

		if score > bestScore {
			best, bestScore = agent, score
		}
	}

	return best, best != nil
}

func tokenize(text string) map[string]bool {
	words := make(map[string]bool)

	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-'
	}) {
		words[word] = true
	}

	return words
}
