package syncjob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"catalog_gateway/internal/models"
	"catalog_gateway/internal/queue"
	"catalog_gateway/internal/task"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("sync service already started")

// Start runs a startup sweep, then the dispatch loop, the scheduler and
// the periodic sweep until ctx is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks != nil {
		return ErrAlreadyStarted
	}
	if spec := s.scheduleSpec(); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid sync schedule %q: %w", spec, err)
		}
	}

	// Jobs left behind by a previous process are failed before new work
	// is accepted.
	if _, err := s.CleanupSweep(ctx, s.cfg.JobTimeout); err != nil {
		s.logger.Warn("Startup sweep failed", "error", err)
	}

	s.tasks = task.NewSupervisor(ctx, 32)
	if _, err := s.tasks.Go("sync-dispatch", s.dispatch); err != nil {
		return err
	}
	if s.scheduleSpec() != "" {
		if _, err := s.tasks.Go("sync-scheduler", s.schedule); err != nil {
			return err
		}
	}
	if s.cfg.CleanupInterval > 0 {
		if _, err := s.tasks.Go("sync-sweep", s.sweep); err != nil {
			return err
		}
	}

	s.logger.Info("Sync service started",
		"workers", s.cfg.Workers,
		"schedule", s.scheduleSpec(),
		"cleanup_interval", s.cfg.CleanupInterval,
		"job_timeout", s.cfg.JobTimeout)
	return nil
}

// Stop cancels the loops and running jobs and waits up to timeout.
// Cancelled jobs are still driven to failed.
func (s *Service) Stop(timeout time.Duration) bool {
	s.mu.Lock()
	tasks := s.tasks
	s.mu.Unlock()
	if tasks == nil {
		return true
	}
	ok := tasks.Stop(timeout)
	s.logger.Info("Sync service stopped", "clean", ok)
	return ok
}

// dispatch pulls job ids from the queue while a worker slot is free.
func (s *Service) dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s.slots <- struct{}{}:
		}

		ids, err := s.queue.DequeueWithTimeout(ctx, 1, s.cfg.PollTimeout)
		if err != nil {
			<-s.slots
			if errors.Is(err, queue.ErrQueueClosed) || ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("Failed to dequeue sync job", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.cfg.PollTimeout):
			}
			continue
		}
		if len(ids) == 0 {
			<-s.slots
			continue
		}

		id, err := uuid.Parse(ids[0])
		if err != nil {
			<-s.slots
			s.logger.Warn("Dropping malformed job id", "job_id", ids[0])
			continue
		}
		if _, err := s.tasks.Go("sync-job:"+id.String(), func(tctx context.Context) error {
			defer func() { <-s.slots }()
			jctx, cancel := context.WithTimeout(tctx, s.cfg.JobTimeout)
			defer cancel()
			return s.Worker(jctx, id)
		}); err != nil {
			<-s.slots
			return nil
		}
	}
}

// scheduleSpec returns the cron spec driving scheduled syncs, or "" when
// scheduling is disabled.
func (s *Service) scheduleSpec() string {
	if s.cfg.Schedule != "" {
		return s.cfg.Schedule
	}
	if s.cfg.Interval > 0 {
		return "@every " + s.cfg.Interval.String()
	}
	return ""
}

func (s *Service) schedule(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(s.scheduleSpec(), func() {
		if _, err := s.Enqueue(ctx, models.ScopeAll, models.TriggerScheduler); err != nil {
			s.logger.Error("Scheduled sync failed to enqueue", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", s.scheduleSpec(), err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *Service) sweep(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.CleanupSweep(ctx, s.cfg.JobTimeout); err != nil {
				s.logger.Warn("Cleanup sweep failed", "error", err)
			}
		}
	}
}
