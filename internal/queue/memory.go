package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue implements Queue using a buffered channel
type MemoryQueue struct {
	items  chan string
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}
	capacity := config.Capacity
	if capacity <= 0 {
		capacity = DefaultConfig("").Capacity
	}

	return &MemoryQueue{
		items: make(chan string, capacity),
		done:  make(chan struct{}),
	}
}

// Enqueue adds a job id without blocking; a full queue is an error since
// the caller must not be held up by dispatch.
func (q *MemoryQueue) Enqueue(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case q.items <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue retrieves job ids
func (q *MemoryQueue) Dequeue(ctx context.Context, maxItems int) ([]string, error) {
	// Block until we get at least one item
	select {
	case id := <-q.items:
		return q.drain([]string{id}, maxItems), nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DequeueWithTimeout retrieves job ids with a timeout
func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case id := <-q.items:
		return q.drain([]string{id}, maxItems), nil
	case <-timer.C:
		return []string{}, nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drain adds already queued ids without blocking.
func (q *MemoryQueue) drain(items []string, maxItems int) []string {
	for len(items) < maxItems {
		select {
		case id := <-q.items:
			items = append(items, id)
		default:
			return items
		}
	}
	return items
}

// Length returns the current queue length
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, ErrQueueClosed
	}
	return len(q.items), nil
}

// Close shuts down the queue and wakes blocked consumers
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}
