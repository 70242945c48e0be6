package providers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog_gateway/internal/storage"
)

const seedYAML = `
providers:
  - slug: Curated
    name: Curated Models
    adapter_type: static
    config:
      models:
        - id: claude-3-5-sonnet
          name: Claude 3.5 Sonnet
          context_length: 200000
          input_per_million: "3"
          output_per_million: "15"
        - id: mystery
          input_per_million: dynamic
          output_per_million: dynamic
  - slug: openrouter
    adapter_type: openrouter
    enabled: false
    config:
      api_key_env: OPENROUTER_API_KEY
`

func TestParseSeed(t *testing.T) {
	items, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "curated", items[0].Slug)
	assert.Equal(t, "Curated Models", items[0].Name)
	assert.True(t, items[0].Enabled)
	assert.Equal(t, "openrouter", items[1].Name)
	assert.False(t, items[1].Enabled)
	assert.Equal(t, "OPENROUTER_API_KEY", items[1].Config.String("api_key_env"))
}

func TestParseSeed_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing slug", "providers:\n  - adapter_type: static\n"},
		{"unknown adapter", "providers:\n  - slug: x\n    adapter_type: carrier-pigeon\n"},
		{"duplicate slug", "providers:\n  - slug: x\n    adapter_type: static\n  - slug: X\n    adapter_type: static\n"},
		{"not yaml", "providers: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestSeed_FeedsRegistry(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	items, err := LoadSeedFile(path)
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	require.NoError(t, Seed(ctx, store, items))
	// seeding twice updates in place
	require.NoError(t, Seed(ctx, store, items))

	registry := NewRegistry(store)
	require.NoError(t, registry.Reload(ctx))

	adapters, err := registry.Adapters("all")
	require.NoError(t, err)
	require.Len(t, adapters, 1)
	assert.Equal(t, "curated", adapters[0].Slug())

	raws, err := adapters[0].FetchCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, raws, 2)

	m, err := adapters[0].Normalize(raws[0])
	require.NoError(t, err)
	assert.Equal(t, 200000, m.ContextLength)
	assert.True(t, m.Pricing.Known)
	assert.Equal(t, "0.000003", m.Pricing.InputPerToken.String())

	m, err = adapters[0].Normalize(raws[1])
	require.NoError(t, err)
	assert.False(t, m.Pricing.Known)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
