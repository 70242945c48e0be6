package queue

import "errors"

var (
	// ErrQueueClosed is returned when operating on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueFull is returned by the memory queue when it is at capacity
	ErrQueueFull = errors.New("queue is full")
)
