package storage

import "errors"

var (
	// ErrProviderNotFound is returned when a provider is not found
	ErrProviderNotFound = errors.New("provider not found")

	// ErrPricingNotFound is returned when a model has no current pricing record
	ErrPricingNotFound = errors.New("pricing not found")

	// ErrJobNotFound is returned when a sync job is not found
	ErrJobNotFound = errors.New("sync job not found")

	// ErrInvalidTransition is returned when a sync job status change would
	// regress or leave a terminal state
	ErrInvalidTransition = errors.New("invalid sync job transition")

	// ErrActiveJobExists is returned when a scope already has a queued or
	// running job
	ErrActiveJobExists = errors.New("an active sync job exists for this scope")
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"
