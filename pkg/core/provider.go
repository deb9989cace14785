package core

import (
	"context"
	"strings"

	"github.com/medabroad/consult/pkg/core/types"
)

// Provider is the interface all LLM providers implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "gemini").
	Name() string

	// Complete sends a non-streaming request.
	Complete(ctx context.Context, req *types.CompletionRequest) (*types.Completion, error)

	// OpenStream starts a streaming request. Establish failures must be
	// returned here, not deferred to the first Next call, so callers can
	// retry with a fallback model before any output is produced.
	OpenStream(ctx context.Context, req *types.CompletionRequest) (EventStream, error)
}

// EventStream is an iterator over streaming events.
type EventStream interface {
	// Next returns the next event. Returns io.EOF when the stream is done.
	Next() (types.StreamEvent, error)

	// Close releases resources. Safe to call concurrently with Next.
	Close() error
}

// ProviderRegistry manages available providers.
type ProviderRegistry interface {
	// Register adds a provider to the registry.
	Register(provider Provider)

	// Get returns a provider by name.
	Get(name string) (Provider, bool)

	// ForModel resolves the provider serving a model name.
	ForModel(model string) (Provider, bool)

	// List returns all registered provider names.
	List() []string
}

type defaultRegistry struct {
	providers map[string]Provider
}

// NewProviderRegistry creates an empty provider registry.
func NewProviderRegistry() ProviderRegistry {
	return &defaultRegistry{providers: make(map[string]Provider)}
}

func (r *defaultRegistry) Register(provider Provider) {
	r.providers[provider.Name()] = provider
}

func (r *defaultRegistry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

func (r *defaultRegistry) ForModel(model string) (Provider, bool) {
	return r.Get(ProviderNameForModel(model))
}

func (r *defaultRegistry) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// ProviderNameForModel maps a model name to its serving provider.
func ProviderNameForModel(model string) string {
	switch {
	case strings.HasPrefix(model, "gemini"):
		return "gemini"
	default:
		return "openai"
	}
}
