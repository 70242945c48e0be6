package providers

import (
	"context"
	"fmt"
	"os"

	"catalog_gateway/internal/models"
)

// RawModel is one entry of an upstream catalog, kept as the opaque decoded
// JSON object. Only the adapter that produced it knows its shape.
type RawModel map[string]any

// Adapter is implemented by each upstream catalog source (OpenAI-compatible
// APIs, OpenRouter, statically configured catalogs, ...).
type Adapter interface {
	// Slug returns the provider slug this adapter serves
	Slug() string

	// FetchCatalog lists the upstream catalog
	FetchCatalog(ctx context.Context) ([]RawModel, error)

	// Normalize converts one raw entry into the canonical model. Prices
	// are converted to per-token; unknown prices leave Pricing.Known false.
	Normalize(raw RawModel) (models.Model, error)
}

// ProviderConfig holds configuration for creating an adapter instance
type ProviderConfig struct {
	Slug   string
	Name   string
	Type   string
	APIKey string         // resolved from the environment, never stored
	Config map[string]any // provider row config
}

// ConfigFromProvider builds an adapter config from a provider row. The API
// key is read from the environment variable named by config "api_key_env".
func ConfigFromProvider(p models.Provider) ProviderConfig {
	cfg := ProviderConfig{
		Slug:   p.Slug,
		Name:   p.Name,
		Type:   p.AdapterType,
		Config: map[string]any(p.Config),
	}
	if env := p.Config.String("api_key_env"); env != "" {
		cfg.APIKey = os.Getenv(env)
	}
	if cfg.Config == nil {
		cfg.Config = map[string]any{}
	}
	return cfg
}

func (c ProviderConfig) stringOption(key, def string) string {
	if v, ok := c.Config[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Factory creates an adapter from configuration
type Factory func(config ProviderConfig) (Adapter, error)

var factories = map[string]Factory{
	string(models.AdapterTypeOpenAI):     NewOpenAIAdapter,
	string(models.AdapterTypeOpenRouter): NewOpenRouterAdapter,
	string(models.AdapterTypeStatic):     NewStaticAdapter,
}

// NewAdapter creates an adapter for config.Type
func NewAdapter(config ProviderConfig) (Adapter, error) {
	factory, ok := factories[config.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported adapter type %q for provider %s", config.Type, config.Slug)
	}
	return factory(config)
}

// SupportedTypes returns the list of supported adapter types
func SupportedTypes() []string {
	return []string{
		string(models.AdapterTypeOpenAI),
		string(models.AdapterTypeOpenRouter),
		string(models.AdapterTypeStatic),
	}
}
