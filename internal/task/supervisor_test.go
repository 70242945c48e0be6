package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisor_WaitAndError(t *testing.T) {
	s := NewSupervisor(context.Background(), 4)
	defer s.Stop(time.Second)

	ok, err := s.Go("ok", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.NoError(t, ok.Wait(context.Background()))

	boom := errors.New("boom")
	failing, err := s.Go("failing", func(ctx context.Context) error { return boom })
	require.NoError(t, err)
	assert.ErrorIs(t, failing.Wait(context.Background()), boom)

	select {
	case f := <-s.Errors():
		assert.Equal(t, "failing", f.Task)
		assert.ErrorIs(t, f, boom)
	case <-time.After(time.Second):
		t.Fatal("failure not reported")
	}
}

func TestSupervisor_RecoversPanic(t *testing.T) {
	s := NewSupervisor(context.Background(), 4)
	defer s.Stop(time.Second)

	tk, err := s.Go("panicky", func(ctx context.Context) error { panic("oops") })
	require.NoError(t, err)

	err = tk.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
	assert.Equal(t, err, tk.Err())
}

func TestSupervisor_GoOnce(t *testing.T) {
	s := NewSupervisor(context.Background(), 4)
	defer s.Stop(time.Second)

	release := make(chan struct{})
	first, started, err := s.GoOnce("refresh", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	require.True(t, started)
	assert.True(t, s.Running("refresh"))

	second, started, err := s.GoOnce("refresh", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.False(t, started)
	assert.Same(t, first, second)

	close(release)
	require.NoError(t, first.Wait(context.Background()))
	assert.False(t, s.Running("refresh"))

	_, started, err = s.GoOnce("refresh", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.True(t, started)
}

func TestSupervisor_StopCancelsTasks(t *testing.T) {
	s := NewSupervisor(context.Background(), 4)

	tk, err := s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	assert.True(t, s.Stop(time.Second))
	assert.ErrorIs(t, tk.Err(), context.Canceled)

	// Cancellation is not a failure.
	select {
	case f := <-s.Errors():
		t.Fatalf("unexpected failure %v", f)
	default:
	}

	_, err = s.Go("late", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestSupervisor_StopTimeout(t *testing.T) {
	s := NewSupervisor(context.Background(), 4)
	release := make(chan struct{})
	defer close(release)

	_, err := s.Go("stubborn", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	assert.False(t, s.Stop(20*time.Millisecond))
}

func TestTask_WaitContext(t *testing.T) {
	s := NewSupervisor(context.Background(), 4)
	release := make(chan struct{})
	defer func() {
		close(release)
		s.Stop(time.Second)
	}()

	tk, err := s.Go("slow", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tk.Wait(ctx), context.DeadlineExceeded)
	assert.NoError(t, tk.Err())
}
