// Package syncjob runs catalog synchronization as background jobs:
// enqueue returns at once, a worker drives the job to a terminal state,
// callers poll for status, and a sweep force-fails jobs that stopped
// making progress.
package syncjob

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"catalog_gateway/internal/catalog"
	"catalog_gateway/internal/fetcher"
	"catalog_gateway/internal/incremental"
	"catalog_gateway/internal/metrics"
	"catalog_gateway/internal/models"
	"catalog_gateway/internal/queue"
	"catalog_gateway/internal/storage"
	"catalog_gateway/internal/task"
	"catalog_gateway/internal/utils"
)

var (
	// ErrUnknownScope is returned for a scope that is neither "all" nor an
	// enabled provider.
	ErrUnknownScope = errors.New("unknown sync scope")

	// ErrNoData fails a job in which no provider produced usable data.
	ErrNoData = errors.New("no provider produced usable data")
)

// Config controls scheduling and timeouts.
type Config struct {
	// Schedule is a cron spec ("0 * * * *", "@every 1h") for scheduled
	// syncs of every provider. When empty, Interval is used; when both are
	// unset the scheduler is disabled.
	Schedule        string
	Interval        time.Duration
	CleanupInterval time.Duration // sweep period, 0 disables it
	JobTimeout      time.Duration // non-terminal jobs older than this are failed
	FetchDeadline   time.Duration
	Workers         int
	PollTimeout     time.Duration // dispatch loop dequeue wait
}

// DefaultConfig returns the default scheduling settings
func DefaultConfig() Config {
	return Config{
		Interval:        time.Hour,
		CleanupInterval: 5 * time.Minute,
		JobTimeout:      30 * time.Minute,
		FetchDeadline:   60 * time.Second,
		Workers:         2,
		PollTimeout:     time.Second,
	}
}

// Deps are the collaborators of a Service.
type Deps struct {
	Jobs      storage.JobStore
	Queue     queue.Queue
	Providers catalog.ProviderSource
	Fetcher   *fetcher.Orchestrator
	Catalog   *catalog.Hierarchy
	Metrics   metrics.Recorder
}

// Service is the background sync orchestrator.
type Service struct {
	cfg       Config
	jobs      storage.JobStore
	queue     queue.Queue
	providers catalog.ProviderSource
	fetcher   *fetcher.Orchestrator
	catalog   *catalog.Hierarchy
	metrics   metrics.Recorder
	logger    *utils.Logger
	now       func() time.Time

	enqueueMu sync.Mutex

	mu    sync.Mutex
	tasks *task.Supervisor
	slots chan struct{}
}

// NewService creates a sync service. Call Start to run its loops.
func NewService(cfg Config, deps Deps) *Service {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = def.PollTimeout
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoopMetrics{}
	}
	return &Service{
		cfg:       cfg,
		jobs:      deps.Jobs,
		queue:     deps.Queue,
		providers: deps.Providers,
		fetcher:   deps.Fetcher,
		catalog:   deps.Catalog,
		metrics:   deps.Metrics,
		logger:    utils.NewLogger("sync"),
		now:       func() time.Time { return time.Now().UTC() },
		slots:     make(chan struct{}, cfg.Workers),
	}
}

// Enqueue registers a sync of scope and hands it to the workers. When the
// scope already has a queued or running job, that job is returned instead
// and nothing new is queued.
func (s *Service) Enqueue(ctx context.Context, scope, triggeredBy string) (*models.SyncJob, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = models.ScopeAll
	}
	if _, err := s.providers.Adapters(scope); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}

	s.enqueueMu.Lock()
	defer s.enqueueMu.Unlock()

	if active, err := s.jobs.FindActiveJob(ctx, scope); err == nil {
		s.logger.Debug("Sync coalesced", "scope", scope, "job_id", active.ID, "triggered_by", triggeredBy)
		return active, nil
	} else if !errors.Is(err, storage.ErrJobNotFound) {
		return nil, err
	}

	job := &models.SyncJob{
		ID:          uuid.New(),
		Scope:       scope,
		Status:      models.JobStatusQueued,
		TriggeredBy: triggeredBy,
		CreatedAt:   s.now(),
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		// Another replica won the race for this scope.
		if errors.Is(err, storage.ErrActiveJobExists) {
			return s.jobs.FindActiveJob(ctx, scope)
		}
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, job.ID.String()); err != nil {
		msg := fmt.Sprintf("dispatch failed: %v", err)
		if cerr := s.jobs.CompleteJob(context.WithoutCancel(ctx), job.ID, models.JobStatusFailed, models.JobCounts{}, &msg, s.now()); cerr != nil {
			s.logger.Error("Failed to fail undispatched job", "job_id", job.ID, "error", cerr)
		}
		return nil, fmt.Errorf("failed to dispatch sync job: %w", err)
	}

	s.logger.Info("Sync job queued", "job_id", job.ID, "scope", scope, "triggered_by", triggeredBy)
	return job, nil
}

// Trigger enqueues a sync on behalf of an admin.
func (s *Service) Trigger(ctx context.Context, scope, adminID string) (*models.SyncJob, error) {
	return s.Enqueue(ctx, scope, models.TriggerAdminPrefix+adminID)
}

// Worker runs one job to a terminal state. A job that is not queued (a
// duplicate dispatch, or one already swept) is skipped. Whatever happens
// during the run, including a panic or cancellation, the job ends as
// success or failed.
func (s *Service) Worker(ctx context.Context, jobID uuid.UUID) (err error) {
	start := s.now()
	if err := s.jobs.MarkJobInProgress(ctx, jobID, start); err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			s.logger.Debug("Skipping job that is no longer queued", "job_id", jobID)
			return nil
		}
		return err
	}

	var counts models.JobCounts
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync worker panic: %v", r)
		}
		s.finish(ctx, jobID, start, counts, err)
	}()

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	log := s.logger.With("job_id", jobID, "scope", job.Scope)
	log.Info("Sync job started", "triggered_by", job.TriggeredBy)

	adapters, err := s.providers.Adapters(job.Scope)
	if err != nil {
		return err
	}

	res, err := s.fetcher.FetchAll(ctx, adapters, s.cfg.FetchDeadline, fetcher.Options{})
	if err != nil {
		return err
	}

	progress := func(provider string, update incremental.UpdateResult, uerr error) {
		if uerr != nil {
			counts.Errors++
		} else {
			counts.Fetched += update.Changed + update.Added + update.Unchanged
			counts.Updated += update.Updated()
			counts.Skipped += update.Unchanged
		}
		if perr := s.jobs.UpdateJobProgress(ctx, jobID, counts); perr != nil {
			log.Warn("Failed to record progress", "provider", provider, "error", perr)
		}
	}
	ingest := s.catalog.Ingest(ctx, res, "sync:"+job.ID.String(), progress)
	counts = ingest.Counts()

	if !ingest.Applied() {
		return fmt.Errorf("%w: %s", ErrNoData, summarize(ingest.Errors))
	}

	if job.Scope == models.ScopeAll {
		err = s.catalog.StoreCatalog(ctx, ingest.Models, res.Status)
	} else {
		err = s.catalog.Invalidate(ctx)
	}
	if err != nil {
		// The origin is up to date; the cache will catch up on expiry.
		log.Warn("Failed to refresh catalog cache", "error", err)
	}
	return nil
}

// finish writes the terminal state with a context that survives the
// caller's cancellation.
func (s *Service) finish(ctx context.Context, jobID uuid.UUID, start time.Time, counts models.JobCounts, runErr error) {
	status := models.JobStatusSuccess
	var msg *string
	if runErr != nil {
		status = models.JobStatusFailed
		m := runErr.Error()
		msg = &m
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	end := s.now()
	if err := s.jobs.CompleteJob(cctx, jobID, status, counts, msg, end); err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			s.logger.Warn("Sync job was finalized before the worker finished", "job_id", jobID)
			return
		}
		s.logger.Error("Failed to complete sync job", "job_id", jobID, "status", status, "error", err)
		return
	}
	s.metrics.SyncJobFinished(string(status), end.Sub(start))

	if runErr != nil {
		s.logger.Warn("Sync job failed", "job_id", jobID, "error", runErr, "duration", end.Sub(start))
		return
	}
	s.logger.Info("Sync job finished",
		"job_id", jobID,
		"fetched", counts.Fetched,
		"updated", counts.Updated,
		"skipped", counts.Skipped,
		"errors", counts.Errors,
		"duration", end.Sub(start))
}

func summarize(errs map[string]error) string {
	if len(errs) == 0 {
		return "no providers in scope"
	}
	parts := make([]string, 0, len(errs))
	for provider, err := range errs {
		parts = append(parts, provider+": "+err.Error())
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// JobView is a job as reported to pollers.
type JobView struct {
	models.SyncJob
	DurationSeconds float64 `json:"duration_seconds"`
}

// Poll returns the current state of a job.
func (s *Service) Poll(ctx context.Context, jobID uuid.UUID) (*JobView, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobView{SyncJob: *job, DurationSeconds: job.Duration(s.now()).Seconds()}, nil
}

// ListActive returns queued and running jobs, oldest first.
func (s *Service) ListActive(ctx context.Context) ([]JobView, error) {
	jobs, err := s.jobs.ListActiveJobs(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobView{SyncJob: j, DurationSeconds: j.Duration(now).Seconds()})
	}
	return out, nil
}

// CleanupSweep force-fails every non-terminal job whose last activity is
// older than timeout and returns how many were failed.
func (s *Service) CleanupSweep(ctx context.Context, timeout time.Duration) (int, error) {
	now := s.now()
	reason := fmt.Sprintf("timed out: no completion within %s", timeout)

	failed, err := s.jobs.FailStaleJobs(ctx, now.Add(-timeout), reason, now)
	if err != nil {
		return len(failed), fmt.Errorf("cleanup sweep failed: %w", err)
	}
	for _, j := range failed {
		s.logger.Warn("Stale sync job failed", "job_id", j.ID, "scope", j.Scope, "created_at", j.CreatedAt)
	}
	if len(failed) > 0 {
		s.metrics.SyncJobsSwept(len(failed))
	}
	return len(failed), nil
}
