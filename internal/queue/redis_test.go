package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Config) {
	t.Helper()
	mr := miniredis.RunT(t)

	config := DefaultConfig("sync-jobs-test")
	config.UseRedis = true
	config.RedisAddr = mr.Addr()
	return mr, config
}

func TestRedisQueue_Contract(t *testing.T) {
	_, config := setupTestRedis(t)

	q, err := NewRedisQueue(config)
	require.NoError(t, err)
	defer q.Close()

	testQueueContract(t, q)
}

func TestRedisQueue_Persistence(t *testing.T) {
	mr, config := setupTestRedis(t)
	ctx := context.Background()

	q1, err := NewRedisQueue(config)
	require.NoError(t, err)
	require.NoError(t, q1.Enqueue(ctx, "job-a"))
	require.NoError(t, q1.Enqueue(ctx, "job-b"))
	require.NoError(t, q1.Close())

	list, err := mr.List("queue:sync-jobs-test")
	require.NoError(t, err)
	assert.Equal(t, []string{"job-a", "job-b"}, list)

	// A new connection, as after a restart, sees the queued ids.
	q2, err := NewRedisQueue(config)
	require.NoError(t, err)
	defer q2.Close()

	items, err := q2.Dequeue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"job-a", "job-b"}, items)
}

func TestRedisQueue_SharedClient(t *testing.T) {
	mr, _ := setupTestRedis(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := DefaultConfig("shared")
	cfg.Client = client
	built, err := New(cfg)
	require.NoError(t, err)
	require.IsType(t, &RedisQueue{}, built)
	q := built.(*RedisQueue)
	require.NoError(t, q.Enqueue(context.Background(), "job-1"))
	require.NoError(t, q.Close())

	// The shared connection stays usable.
	assert.NoError(t, client.Ping(context.Background()).Err())
	n, err := q.Length(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisQueue_ConnectFailure(t *testing.T) {
	config := DefaultConfig("x")
	config.UseRedis = true
	config.RedisAddr = "127.0.0.1:1"

	_, err := New(config)
	assert.Error(t, err)
}

func TestRedisQueue_ContextCancel(t *testing.T) {
	_, config := setupTestRedis(t)
	q, err := NewRedisQueue(config)
	require.NoError(t, err)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = q.Dequeue(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRedisQueue_DequeueCancelOnSharedClient(t *testing.T) {
	mr, _ := setupTestRedis(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	q := NewRedisQueueFromClient(client, "shared-cancel")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx, 1)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Dequeue did not return after cancellation")
	}
}

func TestRedisQueue_DequeueWaitsForItem(t *testing.T) {
	_, config := setupTestRedis(t)
	q, err := NewRedisQueue(config)
	require.NoError(t, err)
	defer q.Close()

	go func() {
		time.Sleep(1200 * time.Millisecond)
		_ = q.Enqueue(context.Background(), "late-job")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	items, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"late-job"}, items)
}
