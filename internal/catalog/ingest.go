package catalog

import (
	"context"

	"catalog_gateway/internal/fetcher"
	"catalog_gateway/internal/incremental"
	"catalog_gateway/internal/models"
)

// IngestResult reports how a fetch was applied, provider by provider.
type IngestResult struct {
	Updates map[string]incremental.UpdateResult
	Errors  map[string]error

	// Models is the merged catalog of every provider that was applied,
	// carrying origin ids, sorted by provider then model id.
	Models []models.Model
}

// Applied reports whether at least one provider's fresh catalog was
// written through.
func (r *IngestResult) Applied() bool {
	return len(r.Updates) > 0
}

// Counts sums the per-provider outcomes into job counters.
func (r *IngestResult) Counts() models.JobCounts {
	var c models.JobCounts
	for _, u := range r.Updates {
		c.Fetched += u.Changed + u.Added + u.Unchanged
		c.Updated += u.Updated()
		c.Skipped += u.Unchanged
	}
	c.Errors = len(r.Errors)
	return c
}

// ProgressFunc observes each provider as it is applied.
type ProgressFunc func(provider string, update incremental.UpdateResult, err error)

// Ingest feeds every available provider of res through the incremental
// updater. Providers that failed upstream contribute their last synced
// catalog; providers whose update fails are reported in Errors and their
// fetched models are kept in the merged catalog without origin ids.
func (h *Hierarchy) Ingest(ctx context.Context, res *fetcher.Result, changedBy string, progress ProgressFunc) *IngestResult {
	out := &IngestResult{
		Updates: make(map[string]incremental.UpdateResult),
		Errors:  make(map[string]error),
	}

	for _, slug := range res.Available() {
		fresh := res.ProviderModels(slug)
		update, err := h.updater.UpdateIncremental(ctx, slug, fresh, changedBy)
		if progress != nil {
			progress(slug, update, err)
		}
		if err != nil {
			h.logger.Warn("Incremental update failed", "provider", slug, "error", err)
			out.Errors[slug] = err
			out.Models = append(out.Models, fresh...)
			continue
		}
		out.Updates[slug] = update
		out.Models = append(out.Models, update.Models...)
	}

	// Unavailable providers keep their last synced catalog; the status map
	// still reports them as down.
	for slug, st := range res.Status {
		if st.Available() {
			continue
		}
		out.Errors[slug] = errFromStatus(st)
		lastKnown, err := h.updater.CachedCatalog(ctx, slug)
		if err != nil {
			h.logger.Warn("Failed to load last known catalog", "provider", slug, "error", err)
			continue
		}
		out.Models = append(out.Models, lastKnown...)
	}

	fetcher.SortModels(out.Models)
	return out
}

type statusError struct {
	status models.ProviderStatus
}

func (e statusError) Error() string {
	if e.status.Error != "" {
		return e.status.Error
	}
	return "provider " + e.status.Provider + " " + e.status.State
}

func errFromStatus(st models.ProviderStatus) error {
	return statusError{status: st}
}
