package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Health states reported by upstream providers or derived during sync.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthDown     = "down"
	HealthUnknown  = "unknown"
)

//
// Model (models table)
//

// Model is the canonical, provider-independent representation of one
// upstream model. Identity is (ProviderSlug, ProviderModelID).
type Model struct {
	ID uuid.UUID `db:"id" json:"id"`

	// 1. Identity
	ProviderSlug    string `db:"provider_slug" json:"provider_slug"`
	ProviderModelID string `db:"provider_model_id" json:"provider_model_id"`
	DisplayName     string `db:"display_name" json:"display_name"`
	Description     string `db:"description" json:"description,omitempty"`

	// FamilyID is the curated family identifier, when the provider or an
	// operator supplied one. FamilyKey is the key computed by the active
	// dedup policy and is what cross-provider lookups match on.
	FamilyID  string `db:"family_id" json:"family_id,omitempty"`
	FamilyKey string `db:"family_key" json:"family_key,omitempty"`

	// 2. Shape
	ContextLength int    `db:"context_length" json:"context_length"`
	Modality      string `db:"modality" json:"modality"`

	// 3. Capability flags
	SupportsStreaming       bool `db:"supports_streaming" json:"supports_streaming"`
	SupportsVision          bool `db:"supports_vision" json:"supports_vision"`
	SupportsFunctionCalling bool `db:"supports_function_calling" json:"supports_function_calling"`

	// 4. Lifecycle
	IsActive     bool   `db:"is_active" json:"is_active"`
	HealthStatus string `db:"health_status" json:"health_status"`

	// 5. Generic metadata
	Metadata JSONB `db:"metadata" json:"metadata,omitempty"`

	// 6. Timestamps
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Carried from the adapter, persisted to model_pricing, not a models column.
	Pricing ModelPricing `db:"-" json:"pricing"`

	// Other providers serving the same family, set on deduplicated views.
	AlternateProviders []string `db:"-" json:"alternate_providers,omitempty"`
}

// ModelPricing is the per-token price pair an adapter reported for a model.
// Known is false when the upstream advertised dynamic or missing pricing.
type ModelPricing struct {
	Known          bool            `json:"known"`
	InputPerToken  decimal.Decimal `json:"input_per_token"`
	OutputPerToken decimal.Decimal `json:"output_per_token"`
	RequestPrice   decimal.Decimal `json:"request_price"`
	ImagePrice     decimal.Decimal `json:"image_price"`
}

// Equal compares two pricing values numerically.
func (p ModelPricing) Equal(o ModelPricing) bool {
	if p.Known != o.Known {
		return false
	}
	if !p.Known {
		return true
	}
	return p.InputPerToken.Equal(o.InputPerToken) &&
		p.OutputPerToken.Equal(o.OutputPerToken) &&
		p.RequestPrice.Equal(o.RequestPrice) &&
		p.ImagePrice.Equal(o.ImagePrice)
}

// ModelKey builds the cache/diff key for a (provider, model id) pair.
func ModelKey(providerSlug, providerModelID string) string {
	return providerSlug + "/" + providerModelID
}

// Key returns the model's identity key.
func (m *Model) Key() string {
	return ModelKey(m.ProviderSlug, m.ProviderModelID)
}

// Healthy reports whether the model is active and not known to be down.
func (m *Model) Healthy() bool {
	return m.IsActive && m.HealthStatus != HealthDown
}
