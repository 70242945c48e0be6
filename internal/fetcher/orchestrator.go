// Package fetcher fans catalog fetches out to every provider in scope with
// bounded concurrency, guarded by per-provider circuit breakers.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"catalog_gateway/internal/breaker"
	"catalog_gateway/internal/family"
	"catalog_gateway/internal/metrics"
	"catalog_gateway/internal/models"
	"catalog_gateway/internal/providers"
	"catalog_gateway/internal/utils"
)

// Config bounds the fan-out.
type Config struct {
	Workers         int
	ProviderTimeout time.Duration // 0 means only the overall deadline applies
}

// DefaultConfig returns the default fan-out bounds
func DefaultConfig() Config {
	return Config{Workers: 8}
}

// Options tune a single FetchAll call.
type Options struct {
	Unique bool
}

// Result is the merged outcome of one fan-out.
type Result struct {
	Models    []models.Model
	Status    map[string]models.ProviderStatus
	Unique    bool
	FetchedAt time.Time

	// byProvider keeps the full (non-deduplicated) per-provider sets, which
	// are what the incremental updater needs.
	byProvider map[string][]models.Model
}

// ProviderModels returns everything slug returned, before deduplication.
func (r *Result) ProviderModels(slug string) []models.Model {
	return r.byProvider[slug]
}

// Available lists providers that returned data, sorted.
func (r *Result) Available() []string {
	var out []string
	for slug, st := range r.Status {
		if st.Available() {
			out = append(out, slug)
		}
	}
	sort.Strings(out)
	return out
}

// Orchestrator runs provider fetches in parallel.
type Orchestrator struct {
	cfg      Config
	breakers *breaker.Registry
	policy   family.Policy
	metrics  metrics.Recorder
	logger   *utils.Logger
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator. Breaker transitions are reported
// to rec.
func NewOrchestrator(cfg Config, breakers *breaker.Registry, policy family.Policy, rec metrics.Recorder) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if rec == nil {
		rec = metrics.NoopMetrics{}
	}
	if policy == nil {
		policy = family.DisplayNamePolicy{}
	}
	breakers.OnStateChange(func(name string, _, to breaker.State) {
		rec.BreakerState(name, int(to))
	})
	return &Orchestrator{
		cfg:      cfg,
		breakers: breakers,
		policy:   policy,
		metrics:  rec,
		logger:   utils.NewLogger("fetcher"),
		now:      time.Now,
	}
}

// Breakers returns the breaker registry
func (o *Orchestrator) Breakers() *breaker.Registry {
	return o.breakers
}

type fetchOutcome struct {
	items    []models.Model
	rejected int
	err      error
}

// FetchAll fetches every adapter's catalog within deadline and merges the
// results. Provider failures never fail the call; they are reported in
// Result.Status. The only error is a parent context that is already done.
func (o *Orchestrator) FetchAll(ctx context.Context, adapters []providers.Adapter, deadline time.Duration, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	var (
		mu         sync.Mutex
		status     = make(map[string]models.ProviderStatus, len(adapters))
		byProvider = make(map[string][]models.Model, len(adapters))
	)

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Workers)

	for _, adapter := range adapters {
		adapter := adapter
		slug := adapter.Slug()

		// Open circuits are answered without taking a worker slot.
		done, err := o.breakers.Get(slug).Allow()
		if err != nil {
			status[slug] = models.ProviderStatus{
				Provider: slug,
				State:    models.ProviderStateCircuitOpen,
				Error:    err.Error(),
			}
			o.metrics.ProviderFetch(slug, models.ProviderStateCircuitOpen, 0)
			continue
		}

		g.Go(func() error {
			st, items := o.fetchOne(ctx, adapter)
			done(st.Available())
			o.metrics.ProviderFetch(slug, st.State, st.Latency)

			mu.Lock()
			status[slug] = st
			if st.Available() {
				byProvider[slug] = items
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{
		Status:     status,
		Unique:     opts.Unique,
		FetchedAt:  o.now(),
		byProvider: byProvider,
	}

	var merged []models.Model
	for _, items := range byProvider {
		merged = append(merged, items...)
	}
	if opts.Unique {
		merged = family.Dedupe(merged, o.policy)
	} else {
		SortModels(merged)
	}
	res.Models = merged

	o.logger.Debug("Fetch complete",
		"providers", len(adapters),
		"available", len(res.Available()),
		"models", len(merged),
		"unique", opts.Unique)
	return res, nil
}

// fetchOne calls one adapter. The fetch and normalization run in their own
// goroutine so that an adapter ignoring its context is abandoned once the
// context expires, and a panic in either step fails only this provider.
func (o *Orchestrator) fetchOne(ctx context.Context, adapter providers.Adapter) (models.ProviderStatus, []models.Model) {
	slug := adapter.Slug()
	st := models.ProviderStatus{Provider: slug}
	start := o.now()

	callCtx := ctx
	if o.cfg.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.ProviderTimeout)
		defer cancel()
	}

	ch := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- fetchOutcome{err: fmt.Errorf("adapter panic: %v", r)}
			}
		}()
		raws, err := adapter.FetchCatalog(callCtx)
		if err != nil {
			ch <- fetchOutcome{err: err}
			return
		}
		items, rejected := o.normalize(adapter, raws)
		ch <- fetchOutcome{items: items, rejected: rejected}
	}()

	var out fetchOutcome
	select {
	case out = <-ch:
	case <-callCtx.Done():
		out = fetchOutcome{err: callCtx.Err()}
	}

	st.Latency = o.now().Sub(start)
	st.LatencyMs = st.Latency.Milliseconds()

	if out.err != nil {
		uerr := &UpstreamError{
			Provider: slug,
			Timeout:  errors.Is(out.err, context.DeadlineExceeded),
			Err:      out.err,
		}
		st.State = models.ProviderStateUnavailable
		st.Error = uerr.Error()
		o.logger.Warn("Provider fetch failed",
			"provider", slug,
			"timeout", uerr.Timeout,
			"recoverable", utils.IsRecoverableError(out.err),
			"error", out.err)
		return st, nil
	}

	st.Rejected = out.rejected
	if st.Rejected > 0 {
		o.logger.Warn("Provider returned invalid entries", "provider", slug, "rejected", st.Rejected)
	}

	st.State = models.ProviderStateOK
	st.Models = len(out.items)
	return st, out.items
}

// normalize converts raw entries into sorted models, counting the entries the
// adapter rejected.
func (o *Orchestrator) normalize(adapter providers.Adapter, raws []providers.RawModel) ([]models.Model, int) {
	slug := adapter.Slug()
	rejected := 0
	items := make([]models.Model, 0, len(raws))
	for _, raw := range raws {
		m, err := adapter.Normalize(raw)
		if err != nil {
			rejected++
			o.logger.Debug("Rejected catalog entry", "provider", slug, "error", err)
			continue
		}
		if m.ProviderSlug == "" {
			m.ProviderSlug = slug
		}
		if m.ProviderModelID == "" {
			rejected++
			continue
		}
		if m.FamilyKey == "" {
			m.FamilyKey = o.policy.Key(m)
		}
		items = append(items, m)
	}
	SortModels(items)
	return items, rejected
}

// SortModels orders models by provider slug, then provider model id.
func SortModels(items []models.Model) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].ProviderSlug != items[j].ProviderSlug {
			return items[i].ProviderSlug < items[j].ProviderSlug
		}
		return items[i].ProviderModelID < items[j].ProviderModelID
	})
}
