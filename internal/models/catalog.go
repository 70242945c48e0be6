package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider availability states reported by a fetch.
const (
	ProviderStateOK          = "ok"
	ProviderStateUnavailable = "unavailable"
	ProviderStateCircuitOpen = "circuit_open"
)

// ProviderStatus is the per-provider outcome of one catalog fetch.
type ProviderStatus struct {
	Provider  string        `json:"provider"`
	State     string        `json:"state"`
	Models    int           `json:"models"`
	Rejected  int           `json:"rejected,omitempty"`
	LatencyMs int64         `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"-"`
}

// Available reports whether the provider returned usable data.
func (s ProviderStatus) Available() bool {
	return s.State == ProviderStateOK
}

// ProviderRef is the provider block embedded in catalog responses.
type ProviderRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// EgressPricing is the API representation of a price, per million tokens.
type EgressPricing struct {
	PromptPricePerMillion     *decimal.Decimal `json:"prompt_price_per_million"`
	CompletionPricePerMillion *decimal.Decimal `json:"completion_price_per_million"`
	RequestPrice              *decimal.Decimal `json:"request_price"`
	ImagePrice                *decimal.Decimal `json:"image_price"`
}

// EnrichedModel is one row of a catalog response.
type EnrichedModel struct {
	ID                      string         `json:"id"`
	ModelIdentifier         string         `json:"model_identifier"`
	Name                    string         `json:"name"`
	Description             string         `json:"description,omitempty"`
	Provider                ProviderRef    `json:"provider"`
	Pricing                 EgressPricing  `json:"pricing"`
	PricingSource           *PricingSource `json:"pricing_source"`
	ContextLength           int            `json:"context_length"`
	Modality                string         `json:"modality"`
	SupportsStreaming       bool           `json:"supports_streaming"`
	SupportsVision          bool           `json:"supports_vision"`
	SupportsFunctionCalling bool           `json:"supports_function_calling"`
	IsActive                bool           `json:"is_active"`
	HealthStatus            string         `json:"health_status"`
	AlternateProviders      []string       `json:"alternate_providers,omitempty"`
}

// CatalogResponse is the paginated result of a catalog query.
type CatalogResponse struct {
	Data           []EnrichedModel           `json:"data"`
	Total          int                       `json:"total"`
	Returned       int                       `json:"returned"`
	Offset         int                       `json:"offset"`
	Limit          int                       `json:"limit"`
	HasMore        bool                      `json:"has_more"`
	Gateway        string                    `json:"gateway"`
	Unique         bool                      `json:"unique"`
	Timestamp      time.Time                 `json:"timestamp"`
	ProviderStatus map[string]ProviderStatus `json:"provider_status,omitempty"`
}
