package providers

import (
	"context"
	"errors"
	"fmt"

	"catalog_gateway/internal/models"
	"catalog_gateway/internal/pricing"
)

// StaticAdapter serves a catalog declared in the provider's configuration,
// for upstreams without a listing endpoint. Prices are given per 1M tokens:
//
//	{
//	  "models": [
//	    {"id": "claude-3-5-sonnet-20241022", "name": "Claude 3.5 Sonnet",
//	     "context_length": 200000, "modality": "text+image->text",
//	     "vision": true, "tools": true, "family_id": "claude-3-5-sonnet",
//	     "input_per_million": "3", "output_per_million": "15"}
//	  ]
//	}
type StaticAdapter struct {
	slug    string
	entries []RawModel
}

// NewStaticAdapter creates an adapter over config "models"
func NewStaticAdapter(config ProviderConfig) (Adapter, error) {
	if config.Slug == "" {
		return nil, fmt.Errorf("slug is required for static adapter")
	}

	list, _ := config.Config["models"].([]any)
	entries := make([]RawModel, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("static provider %s: models[%d] is not an object", config.Slug, i)
		}
		entries = append(entries, obj)
	}

	return &StaticAdapter{slug: config.Slug, entries: entries}, nil
}

func (a *StaticAdapter) Slug() string {
	return a.slug
}

func (a *StaticAdapter) FetchCatalog(ctx context.Context) ([]RawModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]RawModel, len(a.entries))
	copy(out, a.entries)
	return out, nil
}

func (a *StaticAdapter) Normalize(raw RawModel) (models.Model, error) {
	id := raw.str("id")
	if id == "" {
		return models.Model{}, fmt.Errorf("model entry without id")
	}

	name := raw.str("name")
	if name == "" {
		name = id
	}
	modality := raw.str("modality")
	if modality == "" {
		modality = "text->text"
	}
	health := raw.str("health_status")
	if health == "" {
		health = models.HealthHealthy
	}

	m := models.Model{
		ProviderSlug:            a.slug,
		ProviderModelID:         id,
		DisplayName:             name,
		Description:             raw.str("description"),
		FamilyID:                raw.str("family_id"),
		ContextLength:           raw.num("context_length"),
		Modality:                modality,
		SupportsStreaming:       !raw.boolean("no_streaming"),
		SupportsVision:          raw.boolean("vision"),
		SupportsFunctionCalling: raw.boolean("tools"),
		IsActive:                true,
		HealthStatus:            health,
	}

	input, inErr := pricing.ParsePrice(raw["input_per_million"], pricing.Per1M)
	output, outErr := pricing.ParsePrice(raw["output_per_million"], pricing.Per1M)
	for _, err := range []error{inErr, outErr} {
		if err != nil && !errors.Is(err, pricing.ErrDynamicPricing) {
			return models.Model{}, fmt.Errorf("model %s: invalid price: %w", id, err)
		}
	}
	if inErr == nil && outErr == nil {
		m.Pricing = models.ModelPricing{Known: true, InputPerToken: input, OutputPerToken: output}
	}
	return m, nil
}
