package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a sync job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusSuccess    JobStatus = "success"
	JobStatusFailed     JobStatus = "failed"
)

// ScopeAll syncs every enabled provider.
const ScopeAll = "all"

// Triggers recorded in SyncJob.TriggeredBy.
const (
	TriggerScheduler   = "scheduler"
	TriggerAdminPrefix = "admin:"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// CanTransitionTo enforces queued -> in_progress -> {success|failed}. A
// queued job may also be failed directly by the stale-job sweep.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusInProgress || next == JobStatusFailed
	case JobStatusInProgress:
		return next == JobStatusSuccess || next == JobStatusFailed
	default:
		return false
	}
}

// JobCounts are the progress counters accumulated by a sync run.
type JobCounts struct {
	Fetched int `db:"models_fetched" json:"fetched"`
	Updated int `db:"models_updated" json:"updated"`
	Skipped int `db:"models_skipped" json:"skipped"`
	Errors  int `db:"errors" json:"errors"`
}

// Add accumulates other into c.
func (c *JobCounts) Add(other JobCounts) {
	c.Fetched += other.Fetched
	c.Updated += other.Updated
	c.Skipped += other.Skipped
	c.Errors += other.Errors
}

//
// SyncJob (pricing_sync_log table)
//

type SyncJob struct {
	ID           uuid.UUID  `db:"id" json:"job_id"`
	Scope        string     `db:"scope" json:"scope"`
	Status       JobStatus  `db:"status" json:"status"`
	TriggeredBy  string     `db:"triggered_by" json:"triggered_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	StartedAt    *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error,omitempty"`
	JobCounts
}

// Duration returns the elapsed run time, measured to now for running jobs.
func (j *SyncJob) Duration(now time.Time) time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	end := now
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	return end.Sub(*j.StartedAt)
}
