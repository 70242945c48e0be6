package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"catalog_gateway/internal/models"
	"catalog_gateway/internal/storage"
	"catalog_gateway/internal/utils"
)

// ErrPricingNotFound is returned when no tier has a price for the model.
var ErrPricingNotFound = errors.New("pricing not found in any tier")

// ModelRef identifies a model for resolution. ModelID may be nil for models
// that have not been persisted yet.
type ModelRef struct {
	ModelID         uuid.UUID
	ProviderSlug    string
	ProviderModelID string
	FamilyKey       string
}

// RefFor builds the resolution reference of a model.
func RefFor(m *models.Model) ModelRef {
	return ModelRef{
		ModelID:         m.ID,
		ProviderSlug:    m.ProviderSlug,
		ProviderModelID: m.ProviderModelID,
		FamilyKey:       m.FamilyKey,
	}
}

// Resolver looks a price up across three tiers, first hit wins:
// origin current pricing, curated overrides, then another provider's
// price for the same model family.
type Resolver struct {
	store     storage.PricingStore
	overrides *Overrides
	logger    *utils.Logger
}

// NewResolver creates a resolver. overrides may be nil.
func NewResolver(store storage.PricingStore, overrides *Overrides) *Resolver {
	return &Resolver{
		store:     store,
		overrides: overrides,
		logger:    utils.NewLogger("pricing"),
	}
}

// Resolve returns the price of one model tagged with the tier that produced it.
func (r *Resolver) Resolve(ctx context.Context, ref ModelRef) (models.PricingRecord, error) {
	if ref.ModelID != uuid.Nil {
		rec, err := r.store.GetCurrentPricing(ctx, ref.ModelID)
		switch {
		case err == nil:
			rec.Source = models.PricingSourceDatabase
			return *rec, nil
		case !errors.Is(err, storage.ErrPricingNotFound):
			return models.PricingRecord{}, fmt.Errorf("failed to resolve pricing: %w", err)
		}
	}
	return r.resolveFallback(ctx, ref)
}

// ResolveMany resolves a page of models with a single origin lookup for
// tier 1. Models without any price are absent from the result map, which is
// keyed by model key.
func (r *Resolver) ResolveMany(ctx context.Context, refs []ModelRef) (map[string]models.PricingRecord, error) {
	ids := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		if ref.ModelID != uuid.Nil {
			ids = append(ids, ref.ModelID)
		}
	}

	current, err := r.store.GetCurrentPricingBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve pricing batch: %w", err)
	}

	out := make(map[string]models.PricingRecord, len(refs))
	for _, ref := range refs {
		key := models.ModelKey(ref.ProviderSlug, ref.ProviderModelID)
		if rec, ok := current[ref.ModelID]; ok && ref.ModelID != uuid.Nil {
			rec.Source = models.PricingSourceDatabase
			out[key] = rec
			continue
		}

		rec, err := r.resolveFallback(ctx, ref)
		if err != nil {
			if errors.Is(err, ErrPricingNotFound) {
				continue
			}
			return nil, err
		}
		out[key] = rec
	}
	return out, nil
}

func (r *Resolver) resolveFallback(ctx context.Context, ref ModelRef) (models.PricingRecord, error) {
	if rec, ok := r.overrides.Lookup(ref.ProviderSlug, ref.ProviderModelID); ok {
		rec.ModelID = ref.ModelID
		rec.Source = models.PricingSourceManual
		return rec, nil
	}

	if ref.FamilyKey != "" {
		rec, err := r.store.FindFamilyPricing(ctx, ref.FamilyKey, ref.ProviderSlug)
		switch {
		case err == nil:
			r.logger.Debug("Pricing cross-referenced",
				"model", models.ModelKey(ref.ProviderSlug, ref.ProviderModelID),
				"family", ref.FamilyKey,
				"source_model_id", rec.ModelID)
			rec.ModelID = ref.ModelID
			rec.Source = models.PricingSourceCrossReference
			return *rec, nil
		case !errors.Is(err, storage.ErrPricingNotFound):
			return models.PricingRecord{}, fmt.Errorf("failed to cross-reference pricing: %w", err)
		}
	}

	return models.PricingRecord{}, ErrPricingNotFound
}

// Egress converts a resolved record into the per-million API representation.
func Egress(rec models.PricingRecord) models.EgressPricing {
	prompt := ToPerMillion(rec.PricePerInputToken)
	completion := ToPerMillion(rec.PricePerOutputToken)
	request := rec.RequestPrice
	image := rec.ImagePrice
	return models.EgressPricing{
		PromptPricePerMillion:     &prompt,
		CompletionPricePerMillion: &completion,
		RequestPrice:              &request,
		ImagePrice:                &image,
	}
}
