package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"catalog_gateway/internal/models"
	"catalog_gateway/internal/storage"
)

// seedFile is the YAML layout of a provider seed file:
//
//	providers:
//	  - slug: openrouter
//	    name: OpenRouter
//	    adapter_type: openrouter
//	    enabled: true
//	    config:
//	      api_key_env: OPENROUTER_API_KEY
type seedFile struct {
	Providers []seedProvider `yaml:"providers"`
}

type seedProvider struct {
	Slug        string         `yaml:"slug"`
	Name        string         `yaml:"name"`
	SiteURL     string         `yaml:"site_url"`
	LogoURL     string         `yaml:"logo_url"`
	AdapterType string         `yaml:"adapter_type"`
	Enabled     *bool          `yaml:"enabled"`
	Config      map[string]any `yaml:"config"`
}

// LoadSeedFile reads provider definitions from a YAML file.
func LoadSeedFile(path string) ([]models.Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed parses provider definitions. Providers are enabled unless the
// entry says otherwise; unknown adapter types are rejected.
func ParseSeed(data []byte) ([]models.Provider, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse provider seed: %w", err)
	}

	seen := make(map[string]bool, len(file.Providers))
	out := make([]models.Provider, 0, len(file.Providers))
	for i, p := range file.Providers {
		slug := strings.ToLower(strings.TrimSpace(p.Slug))
		if slug == "" {
			return nil, fmt.Errorf("providers[%d]: slug is required", i)
		}
		if seen[slug] {
			return nil, fmt.Errorf("providers[%d]: duplicate slug %q", i, slug)
		}
		seen[slug] = true
		if !isSupported(p.AdapterType) {
			return nil, fmt.Errorf("provider %s: unsupported adapter type %q", slug, p.AdapterType)
		}

		name := p.Name
		if name == "" {
			name = slug
		}
		enabled := true
		if p.Enabled != nil {
			enabled = *p.Enabled
		}
		out = append(out, models.Provider{
			Slug:        slug,
			Name:        name,
			SiteURL:     p.SiteURL,
			LogoURL:     p.LogoURL,
			AdapterType: p.AdapterType,
			Config:      models.JSONB(p.Config),
			Enabled:     enabled,
		})
	}
	return out, nil
}

// Seed registers providers in the origin store, updating existing rows.
func Seed(ctx context.Context, store storage.ProviderStore, items []models.Provider) error {
	for i := range items {
		if err := store.UpsertProvider(ctx, &items[i]); err != nil {
			return fmt.Errorf("failed to seed provider %s: %w", items[i].Slug, err)
		}
	}
	return nil
}

func isSupported(adapterType string) bool {
	for _, t := range SupportedTypes() {
		if t == adapterType {
			return true
		}
	}
	return false
}
