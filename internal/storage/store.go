package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"catalog_gateway/internal/models"
)

// ProviderStore reads and registers upstream providers.
type ProviderStore interface {
	ListEnabledProviders(ctx context.Context) ([]models.Provider, error)
	GetProviderBySlug(ctx context.Context, slug string) (*models.Provider, error)
	UpsertProvider(ctx context.Context, provider *models.Provider) error
}

// ModelStore holds canonical models. Loaded models carry their current
// pricing in Model.Pricing.
type ModelStore interface {
	ListModelsByProvider(ctx context.Context, providerSlug string) ([]models.Model, error)
	ListActiveModels(ctx context.Context) ([]models.Model, error)
	GetModelsByKeys(ctx context.Context, providerSlug string, providerModelIDs []string) ([]models.Model, error)
	// UpsertModels inserts or updates by (provider_slug, provider_model_id)
	// and sets ID on every element.
	UpsertModels(ctx context.Context, items []models.Model) error
	// DeactivateModels soft-deletes models; it returns the number of rows touched.
	DeactivateModels(ctx context.Context, providerSlug string, providerModelIDs []string) (int, error)
}

// PricingStore holds current pricing and the append-only history.
type PricingStore interface {
	GetCurrentPricing(ctx context.Context, modelID uuid.UUID) (*models.PricingRecord, error)
	GetCurrentPricingBatch(ctx context.Context, modelIDs []uuid.UUID) (map[uuid.UUID]models.PricingRecord, error)
	// FindFamilyPricing returns the most recent price of an active model in
	// familyKey served by a provider other than excludeProvider.
	FindFamilyPricing(ctx context.Context, familyKey, excludeProvider string) (*models.PricingRecord, error)
	// RecordPricingChange upserts the current record and appends a history
	// entry when the prices differ. It reports whether anything was written.
	RecordPricingChange(ctx context.Context, record models.PricingRecord, changedBy string) (bool, error)
	// ClearPricing removes the current record of a model whose pricing
	// became unknown and appends a history entry with nil new prices. It
	// reports whether a record existed.
	ClearPricing(ctx context.Context, modelID uuid.UUID, changedBy string) (bool, error)
	ListPricingHistory(ctx context.Context, modelID uuid.UUID) ([]models.PricingHistoryEntry, error)
}

// JobStore is the sync job ledger.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.SyncJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.SyncJob, error)
	FindActiveJob(ctx context.Context, scope string) (*models.SyncJob, error)
	ListActiveJobs(ctx context.Context) ([]models.SyncJob, error)
	MarkJobInProgress(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateJobProgress(ctx context.Context, id uuid.UUID, counts models.JobCounts) error
	CompleteJob(ctx context.Context, id uuid.UUID, status models.JobStatus, counts models.JobCounts, errMsg *string, at time.Time) error
	// FailStaleJobs force-fails non-terminal jobs whose last activity is
	// before cutoff and returns them.
	FailStaleJobs(ctx context.Context, cutoff time.Time, reason string, at time.Time) ([]models.SyncJob, error)
}

// OriginStore is the full relational origin used by the engine.
type OriginStore interface {
	ProviderStore
	ModelStore
	PricingStore
	JobStore
	Health(ctx context.Context) error
}

// allowedPrevious lists the statuses a job may move to next from.
func allowedPrevious(next models.JobStatus) []string {
	var out []string
	for _, s := range []models.JobStatus{models.JobStatusQueued, models.JobStatusInProgress} {
		if s.CanTransitionTo(next) {
			out = append(out, string(s))
		}
	}
	return out
}
