package incremental

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"catalog_gateway/internal/cache"
	"catalog_gateway/internal/family"
	"catalog_gateway/internal/metrics"
	"catalog_gateway/internal/models"
	"catalog_gateway/internal/storage"
	"catalog_gateway/internal/utils"
)

// Store is the part of the origin the updater writes to.
type Store interface {
	storage.ModelStore
	storage.PricingStore
}

// UpdateResult reports what one incremental update did.
type UpdateResult struct {
	Provider       string `json:"provider"`
	Changed        int    `json:"changed"`
	Added          int    `json:"added"`
	Deleted        int    `json:"deleted"`
	Unchanged      int    `json:"unchanged"`
	PricingChanges int    `json:"pricing_changes"`
	ColdStart      bool   `json:"cold_start"`

	// Models is the provider's catalog after the update, with origin ids.
	Models []models.Model `json:"-"`
}

// Updated is the number of models written to the origin.
func (r UpdateResult) Updated() int {
	return r.Changed + r.Added
}

// Updater applies fresh provider catalogs to the cache and origin store.
type Updater struct {
	store    Store
	kv       cache.Store
	detector *Detector
	policy   family.Policy
	ttl      time.Duration
	metrics  metrics.Recorder
	logger   *utils.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewUpdater creates an updater writing member entries with entryTTL.
func NewUpdater(store Store, kv cache.Store, detector *Detector, policy family.Policy, entryTTL time.Duration, rec metrics.Recorder) *Updater {
	if policy == nil {
		policy = family.DisplayNamePolicy{}
	}
	if rec == nil {
		rec = metrics.NoopMetrics{}
	}
	return &Updater{
		store:    store,
		kv:       kv,
		detector: detector,
		policy:   policy,
		ttl:      entryTTL,
		metrics:  rec,
		logger:   utils.NewLogger("incremental"),
		now:      func() time.Time { return time.Now().UTC() },
		locks:    make(map[string]*sync.Mutex),
	}
}

func (u *Updater) providerLock(provider string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.locks[provider]
	if !ok {
		l = &sync.Mutex{}
		u.locks[provider] = l
	}
	return l
}

// CachedCatalog returns the current catalog of provider, read through the
// provider index with origin fall-through.
func (u *Updater) CachedCatalog(ctx context.Context, provider string) ([]models.Model, error) {
	items, _, _, err := u.load(ctx, provider)
	return items, err
}

// load reads the provider's current set. cacheOK is false when the cache
// is unreachable; cold is true when the index had to be rebuilt from the
// origin.
func (u *Updater) load(ctx context.Context, provider string) (items []models.Model, cacheOK bool, cold bool, err error) {
	var ids []string
	err = cache.GetJSON(ctx, u.kv, cache.IndexKey(provider), &ids)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrMiss):
		items, err = u.store.ListModelsByProvider(ctx, provider)
		if err != nil {
			return nil, true, true, fmt.Errorf("failed to load %s from origin: %w", provider, err)
		}
		u.warm(ctx, provider, items)
		return items, true, true, nil
	case cache.IsUnavailable(err):
		u.logger.Warn("Cache unavailable, reading origin", "provider", provider, "error", err)
		items, err = u.store.ListModelsByProvider(ctx, provider)
		if err != nil {
			return nil, false, false, fmt.Errorf("failed to load %s from origin: %w", provider, err)
		}
		return items, false, false, nil
	default:
		return nil, false, false, err
	}

	var missing []string
	items = make([]models.Model, 0, len(ids))
	for _, id := range ids {
		var m models.Model
		err := cache.GetJSON(ctx, u.kv, cache.ModelEntryKey(provider, id), &m)
		switch {
		case err == nil:
			items = append(items, m)
		case errors.Is(err, cache.ErrMiss):
			missing = append(missing, id)
		default:
			return nil, false, false, err
		}
	}

	if len(missing) > 0 {
		found, err := u.store.GetModelsByKeys(ctx, provider, missing)
		if err != nil {
			return nil, true, false, fmt.Errorf("failed to load %s members from origin: %w", provider, err)
		}
		for _, m := range found {
			if !m.IsActive {
				continue
			}
			items = append(items, m)
			if err := cache.SetJSON(ctx, u.kv, cache.ModelEntryKey(provider, m.ProviderModelID), m, u.ttl); err != nil {
				u.logger.Warn("Failed to rewrite cache member", "provider", provider, "model", m.ProviderModelID, "error", err)
			}
		}
		u.logger.Debug("Cache members fell through to origin", "provider", provider, "missing", len(missing), "found", len(found))
	}
	return items, true, false, nil
}

// warm writes every member, then the index.
func (u *Updater) warm(ctx context.Context, provider string, items []models.Model) {
	if err := u.writeMembers(ctx, provider, items); err != nil {
		u.logger.Warn("Cache warm-up failed", "provider", provider, "error", err)
		return
	}
	if err := u.writeIndex(ctx, provider, items); err != nil {
		u.logger.Warn("Cache warm-up failed", "provider", provider, "error", err)
	}
}

func (u *Updater) writeMembers(ctx context.Context, provider string, items []models.Model) error {
	for _, m := range items {
		if err := cache.SetJSON(ctx, u.kv, cache.ModelEntryKey(provider, m.ProviderModelID), m, u.ttl); err != nil {
			return err
		}
	}
	return nil
}

func (u *Updater) writeIndex(ctx context.Context, provider string, items []models.Model) error {
	ids := make([]string, 0, len(items))
	for _, m := range items {
		ids = append(ids, m.ProviderModelID)
	}
	return cache.SetJSON(ctx, u.kv, cache.IndexKey(provider), ids, u.ttl)
}

// UpdateIncremental diffs fresh against the current catalog of provider and
// writes only the difference: changed and added models are upserted (with
// pricing history attributed to changedBy), deleted models are deactivated
// in the origin and dropped from the cache. Calls for the same provider run
// one at a time.
func (u *Updater) UpdateIncremental(ctx context.Context, provider string, fresh []models.Model, changedBy string) (UpdateResult, error) {
	lock := u.providerLock(provider)
	lock.Lock()
	defer lock.Unlock()

	res := UpdateResult{Provider: provider}

	cached, cacheOK, cold, err := u.load(ctx, provider)
	if err != nil {
		return res, err
	}
	res.ColdStart = cold

	current := make([]models.Model, 0, len(fresh))
	for _, m := range fresh {
		if m.ProviderSlug != provider {
			continue
		}
		if m.FamilyKey == "" {
			m.FamilyKey = u.policy.Key(m)
		}
		m.AlternateProviders = nil
		current = append(current, m)
	}

	diff := u.detector.Diff(cached, current)
	res.Changed = len(diff.Changed)
	res.Added = len(diff.Added)
	res.Deleted = len(diff.Deleted)
	res.Unchanged = diff.UnchangedCount

	writes := make([]models.Model, 0, len(diff.Changed)+len(diff.Added))
	writes = append(writes, diff.Changed...)
	writes = append(writes, diff.Added...)

	if len(writes) > 0 {
		if err := u.store.UpsertModels(ctx, writes); err != nil {
			return res, fmt.Errorf("failed to upsert %s models: %w", provider, err)
		}

		now := u.now()
		for i := range writes {
			if !writes[i].Pricing.Known {
				// dynamic or missing upstream price: a stored numeric price
				// would be stale
				cleared, err := u.store.ClearPricing(ctx, writes[i].ID, changedBy)
				if err != nil {
					return res, fmt.Errorf("failed to clear pricing for %s: %w", writes[i].Key(), err)
				}
				if cleared {
					res.PricingChanges++
				}
				continue
			}
			changed, err := u.store.RecordPricingChange(ctx, models.PricingRecordFromModel(&writes[i], now), changedBy)
			if err != nil {
				return res, fmt.Errorf("failed to record pricing for %s: %w", writes[i].Key(), err)
			}
			if changed {
				res.PricingChanges++
			}
		}
	}

	ids := make(map[string]uuid.UUID, len(cached)+len(writes))
	for _, m := range cached {
		ids[m.Key()] = m.ID
	}
	for _, m := range writes {
		ids[m.Key()] = m.ID
	}
	for i := range current {
		current[i].ID = ids[current[i].Key()]
	}
	res.Models = current

	var deletedIDs []string
	for _, m := range diff.Deleted {
		deletedIDs = append(deletedIDs, m.ProviderModelID)
	}
	if len(deletedIDs) > 0 {
		if _, err := u.store.DeactivateModels(ctx, provider, deletedIDs); err != nil {
			return res, fmt.Errorf("failed to deactivate %s models: %w", provider, err)
		}
	}

	if cacheOK {
		u.syncCache(ctx, provider, writes, deletedIDs, current, cold, diff.Empty())
	}

	u.metrics.IncrementalUpdate(provider, res.Changed, res.Added, res.Deleted, res.Unchanged)
	u.logger.Info("Incremental update applied",
		"provider", provider,
		"changed", res.Changed,
		"added", res.Added,
		"deleted", res.Deleted,
		"unchanged", res.Unchanged,
		"pricing_changes", res.PricingChanges)
	return res, nil
}

// syncCache mirrors an applied diff into the cache: members first, then
// the index. On any failure the index is dropped so the next read rebuilds
// from the origin instead of trusting stale members.
func (u *Updater) syncCache(ctx context.Context, provider string, writes []models.Model, deletedIDs []string, current []models.Model, cold, empty bool) {
	// A cold load already warmed the cache with the same set.
	if cold && empty {
		return
	}

	fail := func(err error) {
		u.logger.Warn("Cache sync failed, dropping provider index", "provider", provider, "error", err)
		if derr := u.kv.Delete(ctx, cache.IndexKey(provider)); derr != nil {
			u.logger.Warn("Failed to drop provider index", "provider", provider, "error", derr)
		}
	}

	if err := u.writeMembers(ctx, provider, writes); err != nil {
		fail(err)
		return
	}
	if len(deletedIDs) > 0 {
		keys := make([]string, 0, len(deletedIDs))
		for _, id := range deletedIDs {
			keys = append(keys, cache.ModelEntryKey(provider, id))
		}
		if err := u.kv.Delete(ctx, keys...); err != nil {
			fail(err)
			return
		}
	}
	if err := u.writeIndex(ctx, provider, current); err != nil {
		fail(err)
	}
}
