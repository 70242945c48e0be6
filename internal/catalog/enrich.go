package catalog

import (
	"context"

	"github.com/google/uuid"

	"catalog_gateway/internal/models"
	"catalog_gateway/internal/pricing"
)

// enrich turns one page of models into API rows. Pricing is resolved for
// the page only, with one batched origin lookup.
func (h *Hierarchy) enrich(ctx context.Context, page []models.Model) []models.EnrichedModel {
	out := make([]models.EnrichedModel, 0, len(page))
	if len(page) == 0 {
		return out
	}

	refs := make([]pricing.ModelRef, 0, len(page))
	for i := range page {
		refs = append(refs, pricing.RefFor(&page[i]))
	}

	prices, err := h.resolver.ResolveMany(ctx, refs)
	if err != nil {
		h.logger.Warn("Pricing resolution failed, returning page without prices", "error", err)
		prices = nil
	}

	for i := range page {
		m := &page[i]
		row := models.EnrichedModel{
			ID:                      modelID(m),
			ModelIdentifier:         m.ProviderModelID,
			Name:                    m.DisplayName,
			Description:             m.Description,
			Provider:                h.providerRef(m.ProviderSlug),
			ContextLength:           m.ContextLength,
			Modality:                m.Modality,
			SupportsStreaming:       m.SupportsStreaming,
			SupportsVision:          m.SupportsVision,
			SupportsFunctionCalling: m.SupportsFunctionCalling,
			IsActive:                m.IsActive,
			HealthStatus:            m.HealthStatus,
			AlternateProviders:      m.AlternateProviders,
		}
		if rec, ok := prices[m.Key()]; ok {
			row.Pricing = pricing.Egress(rec)
			source := rec.Source
			row.PricingSource = &source
		}
		out = append(out, row)
	}
	return out
}

func modelID(m *models.Model) string {
	if m.ID != uuid.Nil {
		return m.ID.String()
	}
	return m.Key()
}

func (h *Hierarchy) providerRef(slug string) models.ProviderRef {
	ref := models.ProviderRef{Slug: slug, Name: slug}
	if h.providers == nil {
		return ref
	}
	if p, ok := h.providers.Provider(slug); ok {
		if p.ID != uuid.Nil {
			ref.ID = p.ID.String()
		}
		if p.Name != "" {
			ref.Name = p.Name
		}
	}
	return ref
}
