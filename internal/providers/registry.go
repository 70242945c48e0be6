package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"catalog_gateway/internal/models"
	"catalog_gateway/internal/storage"
	"catalog_gateway/internal/utils"
)

// Registry holds one adapter per enabled provider, loaded from the origin
// store.
type Registry struct {
	store  storage.ProviderStore
	sealer *Sealer
	logger *utils.Logger

	mu        sync.RWMutex
	adapters  map[string]Adapter
	providers map[string]models.Provider
}

// RegistryOption customizes a Registry
type RegistryOption func(*Registry)

// WithSealer lets the registry open API keys stored encrypted under the
// provider config key "api_key_encrypted".
func WithSealer(s *Sealer) RegistryOption {
	return func(r *Registry) { r.sealer = s }
}

// NewRegistry creates an empty registry; call Reload to populate it
func NewRegistry(store storage.ProviderStore, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:     store,
		logger:    utils.NewLogger("providers"),
		adapters:  make(map[string]Adapter),
		providers: make(map[string]models.Provider),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reload rebuilds adapters from the enabled providers. A provider whose
// adapter cannot be built is skipped and logged.
func (r *Registry) Reload(ctx context.Context) error {
	rows, err := r.store.ListEnabledProviders(ctx)
	if err != nil {
		return fmt.Errorf("failed to load providers: %w", err)
	}

	adapters := make(map[string]Adapter, len(rows))
	providers := make(map[string]models.Provider, len(rows))
	for _, p := range rows {
		cfg, err := r.configFor(p)
		if err != nil {
			r.logger.Warn("Skipping provider", "provider", p.Slug, "error", err)
			continue
		}
		adapter, err := NewAdapter(cfg)
		if err != nil {
			r.logger.Warn("Skipping provider", "provider", p.Slug, "error", err)
			continue
		}
		adapters[p.Slug] = adapter
		providers[p.Slug] = p
	}

	r.mu.Lock()
	r.adapters = adapters
	r.providers = providers
	r.mu.Unlock()

	r.logger.Info("Providers loaded", "count", len(adapters))
	return nil
}

// configFor resolves the adapter config, opening a sealed API key when the
// row carries one.
func (r *Registry) configFor(p models.Provider) (ProviderConfig, error) {
	cfg := ConfigFromProvider(p)
	sealed := p.Config.String("api_key_encrypted")
	if sealed == "" {
		return cfg, nil
	}
	if r.sealer == nil {
		return cfg, ErrNoSealer
	}
	key, err := r.sealer.Open(p.Slug, sealed)
	if err != nil {
		return cfg, err
	}
	cfg.APIKey = key
	return cfg, nil
}

// Register adds or replaces an adapter directly.
func (r *Registry) Register(provider models.Provider, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Slug()] = adapter
	if provider.Slug == "" {
		provider.Slug = adapter.Slug()
	}
	r.providers[adapter.Slug()] = provider
}

// Adapters returns the adapters in scope: every adapter for "all" (or
// empty scope), otherwise the single provider named by scope.
func (r *Registry) Adapters(scope string) ([]Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if scope == "" || scope == models.ScopeAll {
		out := make([]Adapter, 0, len(r.adapters))
		for _, a := range r.adapters {
			out = append(out, a)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Slug() < out[j].Slug() })
		return out, nil
	}

	a, ok := r.adapters[scope]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrProviderNotFound, scope)
	}
	return []Adapter{a}, nil
}

// Provider returns the provider row behind slug.
func (r *Registry) Provider(slug string) (models.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[slug]
	return p, ok
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}
