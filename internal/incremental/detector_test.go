package incremental

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog_gateway/internal/models"
)

func model(provider, id string) models.Model {
	return models.Model{
		ProviderSlug:      provider,
		ProviderModelID:   id,
		DisplayName:       id,
		ContextLength:     8192,
		Modality:          "text->text",
		SupportsStreaming: true,
		IsActive:          true,
		HealthStatus:      models.HealthHealthy,
		Pricing: models.ModelPricing{
			Known:          true,
			InputPerToken:  decimal.RequireFromString("0.000001"),
			OutputPerToken: decimal.RequireFromString("0.000002"),
		},
	}
}

func catalogOf(provider string, n int) []models.Model {
	out := make([]models.Model, n)
	for i := range out {
		out[i] = model(provider, fmt.Sprintf("model-%03d", i))
	}
	return out
}

func TestNewDetector(t *testing.T) {
	d, err := NewDetector(nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, DefaultCriticalFields, d.Fields())

	d, err = NewDetector([]string{" Pricing ", "display_name", "pricing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"display_name", "pricing"}, d.Fields())

	_, err = NewDetector([]string{"pricing", "colour"})
	assert.Error(t, err)
}

func TestHasChanged(t *testing.T) {
	d, err := NewDetector(nil)
	require.NoError(t, err)

	base := model("openai", "gpt-4o")

	tests := []struct {
		name    string
		mutate  func(m *models.Model)
		changed bool
	}{
		{"identical", func(m *models.Model) {}, false},
		{"timestamps and ids ignored", func(m *models.Model) {
			m.ID = uuid.New()
			m.UpdatedAt = time.Now()
			m.CreatedAt = time.Now()
		}, false},
		{"metadata ignored", func(m *models.Model) { m.Metadata = models.JSONB{"x": 1} }, false},
		{"display name ignored by default", func(m *models.Model) { m.DisplayName = "GPT 4o" }, false},
		{"equal price with different scale", func(m *models.Model) {
			m.Pricing.InputPerToken = decimal.RequireFromString("0.0000010")
		}, false},
		{"input price", func(m *models.Model) {
			m.Pricing.InputPerToken = decimal.RequireFromString("0.000003")
		}, true},
		{"pricing became unknown", func(m *models.Model) { m.Pricing = models.ModelPricing{} }, true},
		{"context length", func(m *models.Model) { m.ContextLength = 128000 }, true},
		{"description", func(m *models.Model) { m.Description = "new" }, true},
		{"modality", func(m *models.Model) { m.Modality = "text+image->text" }, true},
		{"vision capability", func(m *models.Model) { m.SupportsVision = true }, true},
		{"deactivated", func(m *models.Model) { m.IsActive = false }, true},
		{"health", func(m *models.Model) { m.HealthStatus = models.HealthDown }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fresh := base
			tt.mutate(&fresh)
			assert.Equal(t, tt.changed, d.HasChanged(base, fresh))
		})
	}
}

func TestHasChanged_RestrictedFields(t *testing.T) {
	d, err := NewDetector([]string{FieldPricing})
	require.NoError(t, err)

	base := model("openai", "gpt-4o")
	fresh := base
	fresh.ContextLength = 1
	assert.False(t, d.HasChanged(base, fresh))

	fresh.Pricing.OutputPerToken = decimal.RequireFromString("0.1")
	assert.True(t, d.HasChanged(base, fresh))
}

func TestDiff_Partition(t *testing.T) {
	d, err := NewDetector(nil)
	require.NoError(t, err)

	cached := catalogOf("p", 10)
	for i := range cached {
		cached[i].ID = uuid.New()
	}

	fresh := append([]models.Model(nil), cached[2:]...) // 0 and 1 deleted
	for i := range fresh {
		fresh[i].ID = uuid.Nil
	}
	fresh[0].ContextLength = 1 // model-002 changed
	fresh[3].Description = "x" // model-005 changed
	fresh = append(fresh, model("p", "model-new-a"), model("p", "model-new-b"))
	fresh = append(fresh, fresh[1]) // duplicate counted once

	res := d.Diff(cached, fresh)

	assert.Len(t, res.Changed, 2)
	assert.Len(t, res.Added, 2)
	assert.Len(t, res.Deleted, 2)
	assert.Equal(t, 6, res.UnchangedCount)
	assert.False(t, res.Empty())

	// Fresh keys are partitioned exactly once.
	assert.Equal(t, 10, len(res.Changed)+len(res.Added)+res.UnchangedCount)

	keys := map[string]int{}
	for _, group := range [][]models.Model{res.Changed, res.Added, res.Deleted} {
		for _, m := range group {
			keys[m.Key()]++
		}
	}
	for k, n := range keys {
		assert.Equal(t, 1, n, k)
	}

	assert.Equal(t, "model-002", res.Changed[0].ProviderModelID)
	assert.Equal(t, cached[2].ID, res.Changed[0].ID, "changed models keep the cached id")
	assert.Equal(t, "model-000", res.Deleted[0].ProviderModelID)
}

func TestDiff_Empty(t *testing.T) {
	d, err := NewDetector(nil)
	require.NoError(t, err)

	res := d.Diff(nil, nil)
	assert.True(t, res.Empty())

	cached := catalogOf("p", 3)
	res = d.Diff(cached, catalogOf("p", 3))
	assert.True(t, res.Empty())
	assert.Equal(t, 3, res.UnchangedCount)

	res = d.Diff(cached, nil)
	assert.Len(t, res.Deleted, 3)
}
