package family

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog_gateway/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"GPT-4o":                            "gpt-4o",
		"meta-llama/Llama-3.1-70B-Instruct": "llama-3-1-70b-instruct",
		"mistralai/mixtral-8x7b:free":       "mixtral-8x7b",
		"  Claude 3.5 Sonnet  ":             "claude-3-5-sonnet",
		"anthropic/claude-3.5-sonnet:beta":  "claude-3-5-sonnet",
		"---":                               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestDisplayNamePolicy_FallsBackToModelID(t *testing.T) {
	p := DisplayNamePolicy{}
	assert.Equal(t, "gpt-4o-mini", p.Key(models.Model{ProviderModelID: "openai/gpt-4o-mini"}))
	assert.Equal(t, "gpt-4o", p.Key(models.Model{DisplayName: "GPT 4o", ProviderModelID: "x"}))
}

func TestCuratedPolicy(t *testing.T) {
	p := NewCuratedPolicy(map[string]string{"groq/llama3-70b-8192": "llama-3-70b"}, DisplayNamePolicy{})

	assert.Equal(t, "llama-3-70b", p.Key(models.Model{ProviderSlug: "groq", ProviderModelID: "llama3-70b-8192"}))
	assert.Equal(t, "fam", p.Key(models.Model{ProviderSlug: "a", ProviderModelID: "b", FamilyID: "fam"}))
	assert.Equal(t, "some-model", p.Key(models.Model{ProviderSlug: "a", ProviderModelID: "Some Model"}))

	strict := NewCuratedPolicy(nil, nil)
	assert.Equal(t, "", strict.Key(models.Model{ProviderSlug: "a", ProviderModelID: "b"}))
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy("", nil)
	require.NoError(t, err)
	assert.IsType(t, DisplayNamePolicy{}, p)

	p, err = NewPolicy(PolicyCurated, map[string]string{"a/b": "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", p.Key(models.Model{ProviderSlug: "a", ProviderModelID: "b"}))

	_, err = NewPolicy("embedding", nil)
	assert.Error(t, err)
}

func priced(provider, id, name, input string, active bool) models.Model {
	m := models.Model{
		ProviderSlug:    provider,
		ProviderModelID: id,
		DisplayName:     name,
		IsActive:        active,
		HealthStatus:    models.HealthHealthy,
	}
	if input != "" {
		m.Pricing = models.ModelPricing{Known: true, InputPerToken: decimal.RequireFromString(input)}
	}
	return m
}

func TestDedupe(t *testing.T) {
	items := []models.Model{
		priced("openrouter", "openai/gpt-4o", "GPT-4o", "0.000005", true),
		priced("openai", "gpt-4o", "GPT-4o", "0.0000025", true),
		priced("azure", "gpt-4o", "GPT-4o", "", true),
		priced("together", "llama-3-70b", "Llama 3 70B", "0.0000009", false),
		priced("groq", "llama-3-70b", "Llama 3 70B", "0.0000059", true),
		{ProviderSlug: "x", ProviderModelID: "???"},
	}

	out := Dedupe(items, DisplayNamePolicy{})
	require.Len(t, out, 3)

	// keyless models sort first and are never merged
	assert.Equal(t, "x", out[0].ProviderSlug)

	assert.Equal(t, "gpt-4o", out[1].FamilyKey)
	assert.Equal(t, "openai", out[1].ProviderSlug, "lowest known price wins")
	assert.Equal(t, []string{"azure", "openrouter"}, out[1].AlternateProviders)

	assert.Equal(t, "llama-3-70b", out[2].FamilyKey)
	assert.Equal(t, "groq", out[2].ProviderSlug, "active beats cheaper inactive")
	assert.Equal(t, []string{"together"}, out[2].AlternateProviders)
}

func TestDedupe_UsesPrecomputedFamilyKey(t *testing.T) {
	a := priced("a", "m1", "Alpha", "0.000001", true)
	a.FamilyKey = "shared"
	b := priced("b", "m2", "Beta", "0.000002", true)
	b.FamilyKey = "shared"

	out := Dedupe([]models.Model{b, a}, DisplayNamePolicy{})
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ProviderSlug)
}

func TestParseCuratedMap(t *testing.T) {
	entries, err := ParseCuratedMap([]byte(`
families:
  openai/gpt-4o: gpt-4o
  azure/gpt-4o-eastus: " gpt-4o "
  together/meta-llama/Llama-3-70b-chat-hf: llama-3-70b
`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"openai/gpt-4o":                           "gpt-4o",
		"azure/gpt-4o-eastus":                     "gpt-4o",
		"together/meta-llama/Llama-3-70b-chat-hf": "llama-3-70b",
	}, entries)

	p, err := NewPolicy(PolicyCurated, entries)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", p.Key(models.Model{ProviderSlug: "azure", ProviderModelID: "gpt-4o-eastus"}))
	assert.Equal(t, "llama-3-70b", p.Key(models.Model{ProviderSlug: "together", ProviderModelID: "meta-llama/Llama-3-70b-chat-hf"}))

	bad := []string{
		"families: [a, b]",
		"families:\n  no-slash: x\n",
		"families:\n  /model: x\n",
		"families:\n  openai/gpt-4o: \"\"\n",
	}
	for _, doc := range bad {
		_, err := ParseCuratedMap([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestLoadCuratedMap(t *testing.T) {
	entries, err := LoadCuratedMap("")
	require.NoError(t, err)
	assert.Empty(t, entries)

	path := filepath.Join(t.TempDir(), "families.yaml")
	require.NoError(t, os.WriteFile(path, []byte("families:\n  groq/llama3-70b-8192: llama-3-70b\n"), 0o600))
	entries, err = LoadCuratedMap(path)
	require.NoError(t, err)
	assert.Equal(t, "llama-3-70b", entries["groq/llama3-70b-8192"])

	_, err = LoadCuratedMap(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
