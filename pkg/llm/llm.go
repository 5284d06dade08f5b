// Package llm provides the model provider registry used by llm and knowledge
// nodes. Providers are backed by langchaingo models.
package llm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrUnknownProvider indicates no provider is registered under the requested name.
	ErrUnknownProvider = errors.New("unknown model provider")

	// ErrUnknownTier indicates the provider has no model for the requested tier.
	ErrUnknownTier = errors.New("unknown model tier")

	// ErrNoProviders indicates the registry is empty.
	ErrNoProviders = errors.New("no model providers registered")

	// ErrEmbeddingsUnsupported indicates the provider cannot generate embeddings.
	ErrEmbeddingsUnsupported = errors.New("provider does not support embeddings")

	// ErrEmptyResponse indicates the provider returned no choices.
	ErrEmptyResponse = errors.New("empty completion response")
)

// Model tiers.
const (
	TierFast     = "fast"
	TierBalanced = "balanced"
	TierPowerful = "powerful"
)

// CompletionRequest is a single prompt completion.
type CompletionRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// Client talks to one provider model.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	GenerateEmbeddings(ctx context.Context, text string) ([]float64, error)
}

// Registry resolves a client for a provider and tier. Empty values select
// the defaults.
type Registry interface {
	GetClient(provider, tier string) (Client, error)
}

// ParseModel splits a "provider:tier" reference.
func ParseModel(model string) (provider, tier string) {
	provider, tier, _ = strings.Cut(strings.TrimSpace(model), ":")

	return strings.TrimSpace(provider), strings.TrimSpace(tier)
}

// ClientFactory builds a client for a concrete model name.
type ClientFactory func(model string) (Client, error)

// Provider is one registered provider with its tier table.
type Provider struct {
	Name        string
	Tiers       map[string]string
	DefaultTier string
	Factory     ClientFactory
}

// ProviderRegistry is the default Registry implementation.
type ProviderRegistry struct {
	mu              sync.RWMutex
	providers       map[string]*Provider
	defaultProvider string
	clients         map[string]Client
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]*Provider),
		clients:   make(map[string]Client),
	}
}

// Register adds a provider. The first registered provider becomes the
// default unless SetDefault is called.
func (r *ProviderRegistry) Register(provider *Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[provider.Name] = provider

	if r.defaultProvider == "" {
		r.defaultProvider = provider.Name
	}
}

func (r *ProviderRegistry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	r.defaultProvider = name

	return nil
}

// Providers returns the registered provider names in sorted order.
func (r *ProviderRegistry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.providers))
}

// GetClient returns a cached client for the provider and tier.
func (r *ProviderRegistry) GetClient(providerName, tier string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if providerName == "" {
		providerName = r.defaultProvider
	}

	if providerName == "" {
		return nil, ErrNoProviders
	}

	provider, ok := r.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	if tier == "" {
		tier = provider.DefaultTier
	}

	model, ok := provider.Tiers[tier]
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", ErrUnknownTier, providerName, tier)
	}

	key := providerName + ":" + tier
	if client, ok := r.clients[key]; ok {
		return client, nil
	}

	client, err := provider.Factory(model)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", key, err)
	}

	r.clients[key] = client

	return client, nil
}
