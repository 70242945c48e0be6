// Package catalog serves the merged model catalog through two cache tiers
// in front of the fetch orchestrator and the origin store:
//
//	L1  final query responses, keyed by query signature, short TTL
//	L2  merged snapshots (full and deduplicated), longer TTL
//
// An L2 miss rebuilds synchronously; an L2 entry close to expiry is
// refreshed in the background while the cached value is served. A cache
// outage turns every tier into a pass-through.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"catalog_gateway/internal/cache"
	"catalog_gateway/internal/family"
	"catalog_gateway/internal/fetcher"
	"catalog_gateway/internal/incremental"
	"catalog_gateway/internal/metrics"
	"catalog_gateway/internal/models"
	"catalog_gateway/internal/pricing"
	"catalog_gateway/internal/providers"
	"catalog_gateway/internal/storage"
	"catalog_gateway/internal/task"
	"catalog_gateway/internal/utils"
)

// Config holds tier lifetimes and query limits.
type Config struct {
	L1TTL            time.Duration
	L2TTL            time.Duration
	RefreshThreshold time.Duration // L2 remaining TTL below this triggers a background refresh
	FetchDeadline    time.Duration
	DefaultLimit     int
	MaxLimit         int
}

// DefaultConfig returns the default tier settings
func DefaultConfig() Config {
	return Config{
		L1TTL:            5 * time.Minute,
		L2TTL:            30 * time.Minute,
		RefreshThreshold: 5 * time.Minute,
		FetchDeadline:    10 * time.Second,
		DefaultLimit:     50,
		MaxLimit:         500,
	}
}

// ProviderSource lists adapters in scope and describes providers.
// providers.Registry implements it.
type ProviderSource interface {
	Adapters(scope string) ([]providers.Adapter, error)
	Provider(slug string) (models.Provider, bool)
}

// Deps are the collaborators of a Hierarchy.
type Deps struct {
	Cache     cache.Store
	Fetcher   *fetcher.Orchestrator
	Providers ProviderSource
	Updater   *incremental.Updater
	Origin    storage.ModelStore
	Resolver  *pricing.Resolver
	Policy    family.Policy
	Tasks     *task.Supervisor
	Metrics   metrics.Recorder
}

// Hierarchy is the cache-first catalog read path.
type Hierarchy struct {
	cfg       Config
	kv        cache.Store
	fetcher   *fetcher.Orchestrator
	providers ProviderSource
	updater   *incremental.Updater
	origin    storage.ModelStore
	resolver  *pricing.Resolver
	policy    family.Policy
	tasks     *task.Supervisor
	metrics   metrics.Recorder
	logger    *utils.Logger
	now       func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	refresh *task.Task
}

const (
	rebuildKey = "catalog-rebuild"
	refreshKey = "catalog-l2-refresh"
)

// NewHierarchy wires a hierarchy from its collaborators.
func NewHierarchy(cfg Config, deps Deps) *Hierarchy {
	def := DefaultConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoopMetrics{}
	}
	if deps.Policy == nil {
		deps.Policy = family.DisplayNamePolicy{}
	}
	return &Hierarchy{
		cfg:       cfg,
		kv:        deps.Cache,
		fetcher:   deps.Fetcher,
		providers: deps.Providers,
		updater:   deps.Updater,
		origin:    deps.Origin,
		resolver:  deps.Resolver,
		policy:    deps.Policy,
		tasks:     deps.Tasks,
		metrics:   deps.Metrics,
		logger:    utils.NewLogger("catalog"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Query answers a catalog request: L1 by signature, then L2, then a
// synchronous rebuild.
func (h *Hierarchy) Query(ctx context.Context, q Query) (*models.CatalogResponse, error) {
	q = q.normalize(h.cfg)
	l1Key := cache.L1Key(q.Signature())
	cacheUp := true

	var cached models.CatalogResponse
	err := cache.GetJSON(ctx, h.kv, l1Key, &cached)
	switch {
	case err == nil:
		h.metrics.CacheLookup(metrics.TierL1, metrics.ResultHit)
		return &cached, nil
	case errors.Is(err, cache.ErrMiss):
		h.metrics.CacheLookup(metrics.TierL1, metrics.ResultMiss)
	case cache.IsUnavailable(err):
		h.metrics.CacheLookup(metrics.TierL1, metrics.ResultUnavailable)
		h.logger.Warn("Cache unavailable, serving pass-through", "error", err)
		cacheUp = false
	default:
		return nil, err
	}

	// Provider scoped queries start from the full view and deduplicate
	// after filtering.
	snap, cacheUp, err := h.snapshot(ctx, q.Unique && q.allProviders(), cacheUp)
	if err != nil {
		return nil, err
	}

	matched := q.filter(snap.Models, h.policy)
	page := q.page(matched)

	resp := &models.CatalogResponse{
		Data:           h.enrich(ctx, page),
		Total:          len(matched),
		Returned:       len(page),
		Offset:         q.Offset,
		Limit:          q.Limit,
		HasMore:        q.Offset+len(page) < len(matched),
		Gateway:        q.Gateway,
		Unique:         q.Unique,
		Timestamp:      h.now(),
		ProviderStatus: snap.ProviderStatus,
	}

	if cacheUp && !snap.Degraded {
		if err := cache.SetJSON(ctx, h.kv, l1Key, resp, h.cfg.L1TTL); err != nil {
			h.logger.Warn("Failed to write L1", "error", err)
		}
	}
	return resp, nil
}

// snapshot returns the L2 view, rebuilding it on a miss. The returned
// cacheUp is false when the cache turned out to be unreachable.
func (h *Hierarchy) snapshot(ctx context.Context, unique, cacheUp bool) (Snapshot, bool, error) {
	if cacheUp {
		var snap Snapshot
		err := cache.GetJSON(ctx, h.kv, cache.L2Key(unique), &snap)
		switch {
		case err == nil:
			if h.maybeRefresh(ctx, unique) {
				h.metrics.CacheLookup(metrics.TierL2, metrics.ResultStale)
			} else {
				h.metrics.CacheLookup(metrics.TierL2, metrics.ResultHit)
			}
			return snap, true, nil
		case errors.Is(err, cache.ErrMiss):
			h.metrics.CacheLookup(metrics.TierL2, metrics.ResultMiss)
		case cache.IsUnavailable(err):
			h.metrics.CacheLookup(metrics.TierL2, metrics.ResultUnavailable)
			h.logger.Warn("Cache unavailable, serving pass-through", "error", err)
			cacheUp = false
		default:
			return Snapshot{}, cacheUp, err
		}
	}

	pair, err := h.rebuildShared(ctx, cacheUp, false)
	if err != nil {
		return Snapshot{}, cacheUp, err
	}
	return pair.pick(unique), cacheUp, nil
}

// maybeRefresh starts a background rebuild when the L2 entry is about to
// expire. It reports whether the entry was stale.
func (h *Hierarchy) maybeRefresh(ctx context.Context, unique bool) bool {
	if h.tasks == nil || h.cfg.RefreshThreshold <= 0 {
		return false
	}
	ttl, err := h.kv.TTL(ctx, cache.L2Key(unique))
	if err != nil || ttl >= h.cfg.RefreshThreshold {
		return false
	}

	t, started, err := h.tasks.GoOnce(refreshKey, func(ctx context.Context) error {
		_, err := h.rebuildShared(ctx, true, true)
		return err
	})
	if err != nil {
		return true
	}
	if started {
		h.logger.Debug("L2 near expiry, refreshing in background", "ttl", ttl)
		h.mu.Lock()
		h.refresh = t
		h.mu.Unlock()
	}
	return true
}

// WaitRefresh blocks until the latest background refresh, if any, is done.
func (h *Hierarchy) WaitRefresh(ctx context.Context) error {
	h.mu.Lock()
	t := h.refresh
	h.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.Wait(ctx)
}

// rebuildShared coalesces concurrent rebuilds into one fan-out. Unless
// forced, a rebuild first re-reads L2 in case a flight that just finished
// already wrote it. The rebuild is detached from the caller's cancellation
// so that one caller giving up does not fail the others; the fetch
// deadline still bounds it.
func (h *Hierarchy) rebuildShared(ctx context.Context, cacheUp, force bool) (*snapshotPair, error) {
	key := rebuildKey
	switch {
	case !cacheUp:
		key += ":passthrough"
	case force:
		key += ":refresh"
	}
	v, err, shared := h.group.Do(key, func() (interface{}, error) {
		detached := context.WithoutCancel(ctx)
		if cacheUp && !force {
			if pair, ok := h.readL2(detached); ok {
				return pair, nil
			}
		}
		return h.rebuild(detached, cacheUp)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		h.logger.Debug("Joined in-flight catalog rebuild")
	}
	return v.(*snapshotPair), nil
}

func (h *Hierarchy) readL2(ctx context.Context) (*snapshotPair, bool) {
	var pair snapshotPair
	if err := cache.GetJSON(ctx, h.kv, cache.L2Key(false), &pair.full); err != nil {
		return nil, false
	}
	if err := cache.GetJSON(ctx, h.kv, cache.L2Key(true), &pair.unique); err != nil {
		return nil, false
	}
	return &pair, true
}

// rebuild fetches every provider, applies the result incrementally and,
// with the cache up, writes both L2 views.
func (h *Hierarchy) rebuild(ctx context.Context, cacheUp bool) (*snapshotPair, error) {
	adapters, err := h.providers.Adapters(models.ScopeAll)
	if err != nil {
		return nil, err
	}

	res, err := h.fetcher.FetchAll(ctx, adapters, h.cfg.FetchDeadline, fetcher.Options{})
	if err != nil {
		return nil, fmt.Errorf("catalog fetch failed: %w", err)
	}

	ingest := h.Ingest(ctx, res, "catalog", nil)
	if !ingest.Applied() {
		if len(ingest.Models) == 0 {
			return h.originFallback(ctx, res.Status)
		}
		h.logger.Warn("No fresh provider data, serving last known catalog", "models", len(ingest.Models))
		pair := h.pairFrom(ingest.Models, res.Status)
		pair.full.Degraded = true
		pair.unique.Degraded = true
		return pair, nil
	}

	pair := h.pairFrom(ingest.Models, res.Status)
	if cacheUp {
		h.writeL2(ctx, pair)
	}
	h.logger.Info("Catalog rebuilt",
		"models", len(pair.full.Models),
		"unique", len(pair.unique.Models),
		"providers_ok", len(res.Available()),
		"providers", len(res.Status))
	return pair, nil
}

// originFallback serves the last synced catalog from the origin when no
// provider returned anything.
func (h *Hierarchy) originFallback(ctx context.Context, status map[string]models.ProviderStatus) (*snapshotPair, error) {
	items, err := h.origin.ListActiveModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("no provider available and origin read failed: %w", err)
	}
	h.logger.Warn("No provider data, serving catalog from origin", "models", len(items))

	pair := h.pairFrom(items, status)
	pair.full.Degraded = true
	pair.unique.Degraded = true
	return pair, nil
}

func (h *Hierarchy) pairFrom(items []models.Model, status map[string]models.ProviderStatus) *snapshotPair {
	now := h.now()
	return &snapshotPair{
		full: Snapshot{
			Models:         items,
			ProviderStatus: status,
			BuiltAt:        now,
		},
		unique: Snapshot{
			Models:         family.Dedupe(items, h.policy),
			ProviderStatus: status,
			Unique:         true,
			BuiltAt:        now,
		},
	}
}

func (h *Hierarchy) writeL2(ctx context.Context, pair *snapshotPair) {
	for _, snap := range []Snapshot{pair.full, pair.unique} {
		if err := h.Store(ctx, snap); err != nil {
			h.logger.Warn("Failed to write L2", "unique", snap.Unique, "error", err)
		}
	}
}

// Store writes a snapshot to its L2 key.
func (h *Hierarchy) Store(ctx context.Context, snap Snapshot) error {
	if snap.Degraded {
		return nil
	}
	return cache.SetJSON(ctx, h.kv, cache.L2Key(snap.Unique), snap, h.cfg.L2TTL)
}

// StoreCatalog writes both L2 views of items and drops every L1 response
// built from the previous views.
func (h *Hierarchy) StoreCatalog(ctx context.Context, items []models.Model, status map[string]models.ProviderStatus) error {
	pair := h.pairFrom(items, status)
	for _, snap := range []Snapshot{pair.full, pair.unique} {
		if err := h.Store(ctx, snap); err != nil {
			return err
		}
	}
	return h.invalidateL1(ctx)
}

// Invalidate drops both L2 views and every L1 response.
func (h *Hierarchy) Invalidate(ctx context.Context) error {
	if err := h.kv.Delete(ctx, cache.L2Key(false), cache.L2Key(true)); err != nil {
		return err
	}
	return h.invalidateL1(ctx)
}

func (h *Hierarchy) invalidateL1(ctx context.Context) error {
	keys, err := h.kv.ScanPrefix(ctx, cache.L1Prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	h.logger.Debug("Dropping L1 responses", "count", len(keys))
	return h.kv.Delete(ctx, keys...)
}
