package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"catalog_gateway/internal/models"
)

const jobColumns = `
	id, scope, status, triggered_by, created_at, started_at, completed_at, error_message,
	models_fetched, models_updated, models_skipped, errors
`

// SyncJobRepository handles the pricing_sync_log job ledger
type SyncJobRepository struct {
	db *DB
}

// NewSyncJobRepository creates a new sync job repository
func NewSyncJobRepository(db *DB) *SyncJobRepository {
	return &SyncJobRepository{db: db}
}

// CreateJob inserts a new job row
func (r *SyncJobRepository) CreateJob(ctx context.Context, job *models.SyncJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO pricing_sync_log (id, scope, status, triggered_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.conn.ExecContext(ctx, query, job.ID, job.Scope, job.Status, job.TriggeredBy, job.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrActiveJobExists
		}
		return fmt.Errorf("failed to create sync job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID
func (r *SyncJobRepository) GetJob(ctx context.Context, id uuid.UUID) (*models.SyncJob, error) {
	var job models.SyncJob
	err := r.db.conn.GetContext(ctx, &job, `SELECT `+jobColumns+` FROM pricing_sync_log WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get sync job: %w", err)
	}
	return &job, nil
}

// FindActiveJob returns the oldest non-terminal job for scope
func (r *SyncJobRepository) FindActiveJob(ctx context.Context, scope string) (*models.SyncJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM pricing_sync_log
		WHERE scope = $1 AND status IN ('queued', 'in_progress')
		ORDER BY created_at
		LIMIT 1
	`

	var job models.SyncJob
	err := r.db.conn.GetContext(ctx, &job, query, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to find active sync job: %w", err)
	}
	return &job, nil
}

// ListActiveJobs returns all non-terminal jobs, oldest first
func (r *SyncJobRepository) ListActiveJobs(ctx context.Context) ([]models.SyncJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM pricing_sync_log
		WHERE status IN ('queued', 'in_progress')
		ORDER BY created_at
	`

	var jobs []models.SyncJob
	if err := r.db.conn.SelectContext(ctx, &jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list active sync jobs: %w", err)
	}
	return jobs, nil
}

// MarkJobInProgress moves a queued job to in_progress
func (r *SyncJobRepository) MarkJobInProgress(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE pricing_sync_log
		SET status = 'in_progress', started_at = $2
		WHERE id = $1 AND status = ANY($3)
	`
	result, err := r.db.conn.ExecContext(ctx, query, id, at, pq.Array(allowedPrevious(models.JobStatusInProgress)))
	if err != nil {
		return fmt.Errorf("failed to start sync job: %w", err)
	}
	return r.checkTransition(ctx, id, result)
}

// UpdateJobProgress persists running counters of an in-progress job
func (r *SyncJobRepository) UpdateJobProgress(ctx context.Context, id uuid.UUID, counts models.JobCounts) error {
	query := `
		UPDATE pricing_sync_log
		SET models_fetched = $2, models_updated = $3, models_skipped = $4, errors = $5
		WHERE id = $1 AND status = 'in_progress'
	`
	result, err := r.db.conn.ExecContext(ctx, query, id, counts.Fetched, counts.Updated, counts.Skipped, counts.Errors)
	if err != nil {
		return fmt.Errorf("failed to update sync job progress: %w", err)
	}
	return r.checkTransition(ctx, id, result)
}

// CompleteJob moves a job to a terminal status. The update is conditional on
// the current status so a terminal job is never overwritten.
func (r *SyncJobRepository) CompleteJob(ctx context.Context, id uuid.UUID, status models.JobStatus, counts models.JobCounts, errMsg *string, at time.Time) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is not terminal", ErrInvalidTransition, status)
	}

	query := `
		UPDATE pricing_sync_log
		SET status = $2, completed_at = $3, error_message = $4,
		    models_fetched = $5, models_updated = $6, models_skipped = $7, errors = $8
		WHERE id = $1 AND status = ANY($9)
	`
	result, err := r.db.conn.ExecContext(
		ctx, query,
		id, status, at, errMsg,
		counts.Fetched, counts.Updated, counts.Skipped, counts.Errors,
		pq.Array(allowedPrevious(status)),
	)
	if err != nil {
		return fmt.Errorf("failed to complete sync job: %w", err)
	}
	return r.checkTransition(ctx, id, result)
}

// FailStaleJobs force-fails jobs stuck before cutoff
func (r *SyncJobRepository) FailStaleJobs(ctx context.Context, cutoff time.Time, reason string, at time.Time) ([]models.SyncJob, error) {
	query := `
		UPDATE pricing_sync_log
		SET status = 'failed', completed_at = $2, error_message = $3
		WHERE status IN ('queued', 'in_progress')
		  AND completed_at IS NULL
		  AND COALESCE(started_at, created_at) < $1
		RETURNING ` + jobColumns

	var jobs []models.SyncJob
	if err := r.db.conn.SelectContext(ctx, &jobs, query, cutoff, at, reason); err != nil {
		return nil, fmt.Errorf("failed to sweep stale sync jobs: %w", err)
	}
	return jobs, nil
}

func (r *SyncJobRepository) checkTransition(ctx context.Context, id uuid.UUID, result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := r.GetJob(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}
