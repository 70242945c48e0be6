// Package metrics exposes engine metrics to Prometheus.
package metrics

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Cache tiers and lookup results.
const (
	TierL1 = "l1"
	TierL2 = "l2"

	ResultHit         = "hit"
	ResultMiss        = "miss"
	ResultStale       = "stale"
	ResultUnavailable = "unavailable"
)

// Recorder receives engine events.
type Recorder interface {
	CacheLookup(tier, result string)
	ProviderFetch(provider, outcome string, latency time.Duration)
	BreakerState(provider string, state int)
	IncrementalUpdate(provider string, changed, added, deleted, unchanged int)
	SyncJobFinished(status string, duration time.Duration)
	SyncJobsSwept(n int)
}

// Metrics is the Prometheus Recorder, registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups      *prometheus.CounterVec
	providerFetches   *prometheus.CounterVec
	providerLatency   *prometheus.HistogramVec
	breakerState      *prometheus.GaugeVec
	incrementalModels *prometheus.CounterVec
	syncJobs          *prometheus.CounterVec
	syncJobDuration   prometheus.Histogram
	syncJobsSwept     prometheus.Counter
}

// New creates the metric set on a fresh registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_cache_lookups_total",
				Help: "Catalog cache lookups by tier and result",
			},
			[]string{"tier", "result"},
		),

		providerFetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_provider_fetches_total",
				Help: "Provider catalog fetches by outcome",
			},
			[]string{"provider", "outcome"},
		),

		providerLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_provider_fetch_duration_seconds",
				Help:    "Provider catalog fetch latency",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		),

		breakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "catalog_breaker_state",
				Help: "Circuit breaker state per provider (0 closed, 1 open, 2 half-open)",
			},
			[]string{"provider"},
		),

		incrementalModels: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_incremental_models_total",
				Help: "Models classified by incremental updates",
			},
			[]string{"provider", "kind"},
		),

		syncJobs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_sync_jobs_total",
				Help: "Finished sync jobs by terminal status",
			},
			[]string{"status"},
		),

		syncJobDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_sync_job_duration_seconds",
				Help:    "Sync job run time",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		syncJobsSwept: f.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_sync_jobs_swept_total",
				Help: "Stale sync jobs force-failed by the cleanup sweep",
			},
		),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WatchDB exports the connection pool statistics of the origin database.
func (m *Metrics) WatchDB(db *sql.DB, name string) {
	m.registry.MustRegister(collectors.NewDBStatsCollector(db, name))
}

// WatchRedisPool exports the connection pool statistics of the Redis client
// backing the cache and the sync queue.
func (m *Metrics) WatchRedisPool(stats func() *redis.PoolStats) {
	f := promauto.With(m.registry)
	gauge := func(name, help string, v func(*redis.PoolStats) uint32) {
		f.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 { return float64(v(stats())) })
	}
	counter := func(name, help string, v func(*redis.PoolStats) uint32) {
		f.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, func() float64 { return float64(v(stats())) })
	}

	gauge("catalog_redis_pool_conns", "Open Redis connections", func(s *redis.PoolStats) uint32 { return s.TotalConns })
	gauge("catalog_redis_pool_idle_conns", "Idle Redis connections", func(s *redis.PoolStats) uint32 { return s.IdleConns })
	counter("catalog_redis_pool_hits_total", "Free connection found in the pool", func(s *redis.PoolStats) uint32 { return s.Hits })
	counter("catalog_redis_pool_misses_total", "Free connection not found in the pool", func(s *redis.PoolStats) uint32 { return s.Misses })
	counter("catalog_redis_pool_timeouts_total", "Waits for a pooled connection that timed out", func(s *redis.PoolStats) uint32 { return s.Timeouts })
}

func (m *Metrics) CacheLookup(tier, result string) {
	m.cacheLookups.WithLabelValues(tier, result).Inc()
}

func (m *Metrics) ProviderFetch(provider, outcome string, latency time.Duration) {
	m.providerFetches.WithLabelValues(provider, outcome).Inc()
	if latency > 0 {
		m.providerLatency.WithLabelValues(provider).Observe(latency.Seconds())
	}
}

func (m *Metrics) BreakerState(provider string, state int) {
	m.breakerState.WithLabelValues(provider).Set(float64(state))
}

func (m *Metrics) IncrementalUpdate(provider string, changed, added, deleted, unchanged int) {
	m.incrementalModels.WithLabelValues(provider, "changed").Add(float64(changed))
	m.incrementalModels.WithLabelValues(provider, "added").Add(float64(added))
	m.incrementalModels.WithLabelValues(provider, "deleted").Add(float64(deleted))
	m.incrementalModels.WithLabelValues(provider, "unchanged").Add(float64(unchanged))
}

func (m *Metrics) SyncJobFinished(status string, duration time.Duration) {
	m.syncJobs.WithLabelValues(status).Inc()
	m.syncJobDuration.Observe(duration.Seconds())
}

func (m *Metrics) SyncJobsSwept(n int) {
	m.syncJobsSwept.Add(float64(n))
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) CacheLookup(string, string)                   {}
func (NoopMetrics) ProviderFetch(string, string, time.Duration)  {}
func (NoopMetrics) BreakerState(string, int)                     {}
func (NoopMetrics) IncrementalUpdate(string, int, int, int, int) {}
func (NoopMetrics) SyncJobFinished(string, time.Duration)        {}
func (NoopMetrics) SyncJobsSwept(int)                            {}

var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = NoopMetrics{}
)
