package llm

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
)

// Registry holds named LLM providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.LLMProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]domain.LLMProvider)}
}

// Register adds a provider. Returns error if name already registered.
func (r *Registry) Register(provider domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return domain.NewDomainError("Registry.Register", domain.ErrDuplicate, name)
	}
	r.providers[name] = provider
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrProviderNotFound, name)
	}
	return p, nil
}

// List returns registered provider names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewProvider builds one provider from its config. An empty type means an
// OpenAI-compatible API.
func NewProvider(pc config.ProviderConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	switch pc.Type {
	case "", "openai":
		return NewOpenAIProvider(pc, logger), nil
	case "anthropic":
		return NewAnthropicProvider(pc, logger), nil
	case "bedrock":
		return newBedrockProvider(pc, logger)
	default:
		return nil, domain.NewDomainError("llm.NewProvider", domain.ErrInvalidInput, fmt.Sprintf("unknown provider type %q", pc.Type))
	}
}

// NewRegistryFromConfig builds every configured provider, wrapping each in a
// circuit breaker when enabled.
func NewRegistryFromConfig(cfg config.LLMConfig, logger *slog.Logger) (*Registry, error) {
	reg := NewRegistry()
	for _, pc := range cfg.Providers {
		p, err := NewProvider(pc, logger)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		if cfg.CircuitBreaker.Enabled {
			p = NewCircuitBreakerProvider(p, cfg.CircuitBreaker, logger)
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
