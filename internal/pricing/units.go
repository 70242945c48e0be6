// Package pricing normalizes upstream prices into the canonical per-token
// representation and resolves the price of a model across lookup tiers.
//
// All arithmetic is fixed-point (shopspring/decimal). Unit conversion is a
// decimal shift, so converting per-million to per-token and back is exact.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit is the denomination an upstream reports a price in.
type Unit string

const (
	PerToken   Unit = "per_token"
	Per1K      Unit = "per_1k_tokens"
	Per1M      Unit = "per_1m_tokens"
	perMillion      = 6
)

var (
	// ErrDynamicPricing marks a price the upstream advertises as variable or
	// unknown. Such values are never stored as numbers.
	ErrDynamicPricing = errors.New("dynamic pricing")

	// ErrUnknownUnit is returned for an unsupported pricing unit.
	ErrUnknownUnit = errors.New("unknown pricing unit")
)

// exponent returns the power of ten the unit is scaled by.
func (u Unit) exponent() (int32, error) {
	switch u {
	case PerToken:
		return 0, nil
	case Per1K:
		return 3, nil
	case Per1M:
		return perMillion, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, string(u))
	}
}

// NormalizeToPerToken converts value expressed in unit into a per-token
// price. Negative values are upstream sentinels for dynamic pricing.
func NormalizeToPerToken(value decimal.Decimal, unit Unit) (decimal.Decimal, error) {
	exp, err := unit.exponent()
	if err != nil {
		return decimal.Zero, err
	}
	if value.IsNegative() {
		return decimal.Zero, ErrDynamicPricing
	}
	return value.Shift(-exp), nil
}

// ToPerMillion converts a canonical per-token price for egress.
func ToPerMillion(perToken decimal.Decimal) decimal.Decimal {
	return perToken.Shift(perMillion)
}

// ParsePrice interprets a raw price from an upstream payload (number or
// string) denominated in unit and returns the per-token value.
func ParsePrice(raw any, unit Unit) (decimal.Decimal, error) {
	var d decimal.Decimal
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, ErrDynamicPricing
	case decimal.Decimal:
		d = v
	case float64:
		d = decimal.NewFromFloat(v)
	case float32:
		d = decimal.NewFromFloat32(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "$"))
		switch strings.ToLower(s) {
		case "", "dynamic", "variable", "n/a", "unknown":
			return decimal.Zero, ErrDynamicPricing
		}
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid price %q: %w", v, err)
		}
		d = parsed
	default:
		return decimal.Zero, fmt.Errorf("invalid price type %T", raw)
	}
	return NormalizeToPerToken(d, unit)
}
