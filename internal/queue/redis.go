package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue using a Redis list
type RedisQueue struct {
	client     *redis.Client
	qKey       string
	ownsClient bool
}

// NewRedisQueue creates a new Redis-backed queue with its own connection
func NewRedisQueue(config *Config) (*RedisQueue, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,

		ContextTimeoutEnabled: true,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	q := NewRedisQueueFromClient(client, config.QueueName)
	q.ownsClient = true
	return q, nil
}

// NewRedisQueueFromClient creates a queue on an existing connection, which
// Close leaves open.
func NewRedisQueueFromClient(client *redis.Client, queueName string) *RedisQueue {
	return &RedisQueue{
		client: client,
		qKey:   fmt.Sprintf("queue:%s", queueName),
	}
}

// Enqueue adds a job id to the queue
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.client.RPush(ctx, q.qKey, jobID).Err(); err != nil {
		return fmt.Errorf("failed to push to Redis: %w", err)
	}
	return nil
}

// blockSlice bounds each BLPOP issued by Dequeue so that cancellation is
// noticed even on clients that ignore context deadlines.
const blockSlice = time.Second

// Dequeue retrieves job ids, blocking until one is available or ctx is done
func (q *RedisQueue) Dequeue(ctx context.Context, maxItems int) ([]string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, err := q.pop(ctx, maxItems, blockSlice)
		if err != nil || len(items) > 0 {
			return items, err
		}
	}
}

// DequeueWithTimeout retrieves job ids with a timeout
func (q *RedisQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]string, error) {
	return q.pop(ctx, maxItems, timeout)
}

func (q *RedisQueue) pop(ctx context.Context, maxItems int, timeout time.Duration) ([]string, error) {
	result, err := q.client.BLPop(ctx, timeout, q.qKey).Result()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil // Timeout, no items
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// the read deadline can fire a moment before the context timer
		if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}

	// result[0] is the key, result[1] is the value
	items := []string{result[1]}

	// Try to get more items without blocking
	for len(items) < maxItems {
		id, err := q.client.LPop(ctx, q.qKey).Result()
		if err != nil {
			break // redis.Nil or a transient error: return what we have
		}
		items = append(items, id)
	}
	return items, nil
}

// Length returns the current queue length
func (q *RedisQueue) Length(ctx context.Context) (int, error) {
	length, err := q.client.LLen(ctx, q.qKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(length), nil
}

// Close closes the connection if the queue opened it
func (q *RedisQueue) Close() error {
	if !q.ownsClient {
		return nil
	}
	return q.client.Close()
}

// New builds the backend selected by config.
func New(config *Config) (Queue, error) {
	switch {
	case config != nil && config.Client != nil:
		return NewRedisQueueFromClient(config.Client, config.QueueName), nil
	case config != nil && config.UseRedis:
		return NewRedisQueue(config)
	}
	return NewMemoryQueue(config), nil
}
