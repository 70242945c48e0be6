package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeToPerToken(t *testing.T) {
	tests := []struct {
		name  string
		value string
		unit  Unit
		want  string
	}{
		{"per token passthrough", "0.000002", PerToken, "0.000002"},
		{"per 1k", "0.03", Per1K, "0.00003"},
		{"per 1m", "3", Per1M, "0.000003"},
		{"per 1m fractional", "0.15", Per1M, "0.00000015"},
		{"zero is free, not dynamic", "0", Per1M, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeToPerToken(decimal.RequireFromString(tt.value), tt.unit)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestNormalizeToPerToken_Errors(t *testing.T) {
	_, err := NormalizeToPerToken(decimal.NewFromInt(-1), Per1M)
	assert.ErrorIs(t, err, ErrDynamicPricing)

	_, err = NormalizeToPerToken(decimal.NewFromInt(1), Unit("per_request"))
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestPricingRoundTrip(t *testing.T) {
	prices := []string{"0", "0.01", "0.15", "0.6", "1", "2.5", "3", "15", "75", "0.0375", "123.456789", "0.000001"}

	for _, p := range prices {
		t.Run(p, func(t *testing.T) {
			perMillion := decimal.RequireFromString(p)
			perToken, err := NormalizeToPerToken(perMillion, Per1M)
			require.NoError(t, err)

			back := ToPerMillion(perToken)
			assert.True(t, perMillion.Equal(back), "round trip of %s gave %s", p, back)
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		unit    Unit
		want    string
		wantErr error
	}{
		{"string per token", "0.0000025", PerToken, "0.0000025", nil},
		{"dollar string per 1m", "$2.50", Per1M, "0.0000025", nil},
		{"float per 1k", 0.5, Per1K, "0.0005", nil},
		{"int per 1m", 10, Per1M, "0.00001", nil},
		{"negative sentinel", "-1", PerToken, "", ErrDynamicPricing},
		{"negative number", -1.0, PerToken, "", ErrDynamicPricing},
		{"dynamic keyword", "dynamic", PerToken, "", ErrDynamicPricing},
		{"variable keyword", "Variable", PerToken, "", ErrDynamicPricing},
		{"empty", "", PerToken, "", ErrDynamicPricing},
		{"nil", nil, PerToken, "", ErrDynamicPricing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.raw, tt.unit)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}

	_, err := ParsePrice("abc", PerToken)
	assert.Error(t, err)
	_, err = ParsePrice(true, PerToken)
	assert.Error(t, err)
}

func TestParseOverrides(t *testing.T) {
	o, err := DefaultOverrides()
	require.NoError(t, err)
	assert.Greater(t, o.Len(), 0)

	rec, ok := o.Lookup("anthropic", "claude-3-5-sonnet-20241022")
	require.True(t, ok)
	assert.True(t, rec.PricePerInputToken.Equal(decimal.RequireFromString("0.000003")))
	assert.True(t, rec.PricePerOutputToken.Equal(decimal.RequireFromString("0.000015")))

	_, ok = o.Lookup("anthropic", "unknown")
	assert.False(t, ok)

	_, err = ParseOverrides([]byte("overrides:\n  - provider: x\n"))
	assert.Error(t, err)

	_, err = ParseOverrides([]byte("overrides:\n  - provider: x\n    model: y\n    input_per_million: dynamic\n"))
	assert.ErrorIs(t, err, ErrDynamicPricing)

	var nilTable *Overrides
	_, ok = nilTable.Lookup("a", "b")
	assert.False(t, ok)
}
