// Package task runs supervised background work: every task is tracked,
// cancellable, awaitable, and its failure is reported instead of lost.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"catalog_gateway/internal/utils"
)

// ErrStopped is returned by Go after Stop.
var ErrStopped = errors.New("supervisor stopped")

// Task is a handle on one background function.
type Task struct {
	name string
	done chan struct{}
	err  error
}

// Name returns the task name
func (t *Task) Name() string { return t.name }

// Done is closed when the task returns.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task's error. It is only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task returns or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failure is a task error as delivered on Supervisor.Errors.
type Failure struct {
	Task string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("task %s: %v", f.Task, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Supervisor owns a set of background tasks.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *utils.Logger
	errs   chan Failure

	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped bool
	running map[string]*Task
}

// NewSupervisor creates a supervisor whose tasks run under a context
// derived from parent. Failures are buffered up to errBuffer; when the
// buffer is full they are only logged.
func NewSupervisor(parent context.Context, errBuffer int) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	if errBuffer <= 0 {
		errBuffer = 16
	}
	return &Supervisor{
		ctx:     ctx,
		cancel:  cancel,
		logger:  utils.NewLogger("task"),
		errs:    make(chan Failure, errBuffer),
		running: make(map[string]*Task),
	}
}

// Errors delivers task failures, panics included.
func (s *Supervisor) Errors() <-chan Failure {
	return s.errs
}

// Go starts fn in the background.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrStopped
	}
	return s.start(name, fn, false), nil
}

// GoOnce starts fn unless a task with the same name is still running, in
// which case it returns the running task and false.
func (s *Supervisor) GoOnce(name string, fn func(ctx context.Context) error) (*Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, false, ErrStopped
	}
	if t, ok := s.running[name]; ok {
		return t, false, nil
	}
	return s.start(name, fn, true), true, nil
}

// Running reports whether a GoOnce task with name is in flight.
func (s *Supervisor) Running(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[name]
	return ok
}

// start must be called with s.mu held.
func (s *Supervisor) start(name string, fn func(ctx context.Context) error, exclusive bool) *Task {
	t := &Task{name: name, done: make(chan struct{})}
	if exclusive {
		s.running[name] = t
	}
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("panic: %v", r)
			}
			if exclusive {
				s.mu.Lock()
				delete(s.running, name)
				s.mu.Unlock()
			}
			if t.err != nil && !errors.Is(t.err, context.Canceled) {
				s.report(Failure{Task: name, Err: t.err})
			}
			close(t.done)
		}()
		t.err = fn(s.ctx)
	}()
	return t
}

func (s *Supervisor) report(f Failure) {
	s.logger.Error("Background task failed", "task", f.Task, "error", f.Err)
	select {
	case s.errs <- f:
	default:
	}
}

// Stop cancels every task and waits up to timeout for them to return. It
// reports whether all tasks finished in time.
func (s *Supervisor) Stop(timeout time.Duration) bool {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		s.logger.Warn("Tasks still running after stop timeout", "timeout", timeout)
		return false
	}
}
