package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelPricing_Equal(t *testing.T) {
	a := ModelPricing{Known: true, InputPerToken: decimal.RequireFromString("0.0000025"), OutputPerToken: decimal.RequireFromString("0.00001")}
	b := ModelPricing{Known: true, InputPerToken: decimal.RequireFromString("0.00000250"), OutputPerToken: decimal.RequireFromString("0.000010")}
	assert.True(t, a.Equal(b), "trailing zeros must not count as a change")

	c := b
	c.OutputPerToken = decimal.RequireFromString("0.000011")
	assert.False(t, a.Equal(c))

	assert.True(t, ModelPricing{}.Equal(ModelPricing{InputPerToken: decimal.NewFromInt(5)}), "unknown prices compare equal")
	assert.False(t, a.Equal(ModelPricing{}))
}

func TestModel_KeyAndHealth(t *testing.T) {
	m := &Model{ProviderSlug: "openrouter", ProviderModelID: "openai/gpt-4o", IsActive: true, HealthStatus: HealthHealthy}
	assert.Equal(t, "openrouter/openai/gpt-4o", m.Key())
	assert.True(t, m.Healthy())

	m.HealthStatus = HealthDown
	assert.False(t, m.Healthy())
}

func TestJSONB_Scan(t *testing.T) {
	var j JSONB
	require.NoError(t, j.Scan([]byte(`{"base_url":"https://example.test"}`)))
	assert.Equal(t, "https://example.test", j.String("base_url"))

	require.NoError(t, j.Scan(`{"a":1}`))
	assert.Equal(t, "", j.String("a"))

	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j)

	assert.Error(t, j.Scan(42))
}
