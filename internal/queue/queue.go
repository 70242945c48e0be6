// Package queue dispatches sync job ids from the enqueuing side to the
// workers, with two backends:
//
// 1. Memory queue (in-process, channel based):
//   - No persistence; queued ids are lost on restart
//   - Zero external dependencies
//   - Used for standalone/development deployments
//
// 2. Redis queue (Redis list based):
//   - Survives process restarts
//   - Shared by several gateway replicas
//
// The queue only carries ids. Job state lives in the origin store, so a
// duplicated or stale id is harmless: the worker's conditional
// queued -> in_progress transition rejects it.
package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue carries sync job ids to workers.
type Queue interface {
	// Enqueue adds a job id to the queue
	Enqueue(ctx context.Context, jobID string) error

	// Dequeue retrieves up to maxItems ids, blocking until at least one is
	// available or the context is cancelled
	Dequeue(ctx context.Context, maxItems int) ([]string, error)

	// DequeueWithTimeout retrieves up to maxItems ids, returning an empty
	// slice when nothing arrives before timeout
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]string, error)

	// Length returns the number of queued ids
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue
	Close() error
}

// Config holds queue configuration
type Config struct {
	// Capacity bounds the in-memory queue
	Capacity int

	// Client, when set, carries the queue on an existing Redis connection
	// such as the catalog cache's.
	Client *redis.Client

	// UseRedis selects a Redis backend with its own connection
	UseRedis bool

	// RedisAddr is the Redis server address (if UseRedis is true)
	RedisAddr string

	// RedisPassword is the Redis password (if UseRedis is true)
	RedisPassword string

	// RedisDB is the Redis database number (if UseRedis is true)
	RedisDB int

	// QueueName is the name/key for the queue
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		Capacity:  1000,
		UseRedis:  false,
		QueueName: queueName,
	}
}
