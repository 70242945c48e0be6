package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })
	return store, mr
}

// testStoreContract runs behaviour every backend must share.
func testStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		_, err := s.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrMiss)
		_, err = s.TTL(ctx, "absent")
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("set requires ttl", func(t *testing.T) {
		assert.ErrorIs(t, s.Set(ctx, "k", []byte("v"), 0), ErrNoTTL)
	})

	t.Run("set get ttl delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k1", []byte("v1"), time.Minute))
		got, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)

		ttl, err := s.TTL(ctx, "k1")
		require.NoError(t, err)
		assert.Greater(t, ttl, 50*time.Second)
		assert.LessOrEqual(t, ttl, time.Minute)

		require.NoError(t, s.Delete(ctx, "k1", "never-existed"))
		_, err = s.Get(ctx, "k1")
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("scan prefix", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, L1Key("a"), []byte("1"), time.Minute))
		require.NoError(t, s.Set(ctx, L1Key("b"), []byte("2"), time.Minute))
		require.NoError(t, s.Set(ctx, L2Key(true), []byte("3"), time.Minute))

		keys, err := s.ScanPrefix(ctx, L1Prefix)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{L1Key("a"), L1Key("b")}, keys)
	})

	t.Run("json helpers", func(t *testing.T) {
		type payload struct {
			IDs []string `json:"ids"`
		}
		require.NoError(t, SetJSON(ctx, s, IndexKey("openai"), payload{IDs: []string{"gpt-4o"}}, time.Minute))

		var got payload
		require.NoError(t, GetJSON(ctx, s, IndexKey("openai"), &got))
		assert.Equal(t, []string{"gpt-4o"}, got.IDs)

		require.NoError(t, s.Set(ctx, "corrupt", []byte("{"), time.Minute))
		assert.ErrorIs(t, GetJSON(ctx, s, "corrupt", &got), ErrMiss)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	testStoreContract(t, NewMemoryStore(100))
}

func TestRedisStore_Contract(t *testing.T) {
	s, _ := setupTestRedis(t)
	testStoreContract(t, s)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(10)
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, s.Set(ctx, "long", []byte("v"), time.Hour))

	now = now.Add(59 * time.Second)
	ttl, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Second, ttl)

	now = now.Add(time.Second)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, s.CleanupExpired())
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), time.Minute))
	_, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "c", []byte("3"), time.Minute))

	_, err = s.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = s.Get(ctx, "a")
	assert.NoError(t, err)
}

func TestMemoryStore_ClosedIsUnavailable(t *testing.T) {
	s := NewMemoryStore(2)
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), "a")
	assert.True(t, IsUnavailable(err))
	assert.ErrorIs(t, s.Ping(context.Background()), ErrUnavailable)
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s, mr := setupTestRedis(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_OutageIsUnavailable(t *testing.T) {
	ctx := context.Background()
	s, mr := setupTestRedis(t)
	mr.Close()

	_, err := s.Get(ctx, "k")
	assert.True(t, IsUnavailable(err))
	assert.True(t, IsUnavailable(s.Set(ctx, "k", []byte("v"), time.Minute)))
	assert.Error(t, s.Health(ctx))
}

func TestRedisStore_Health(t *testing.T) {
	s, _ := setupTestRedis(t)
	assert.NoError(t, s.Health(context.Background()))
}

// failingCommand makes one Redis command fail while the rest go through.
type failingCommand struct{ name string }

func (h failingCommand) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h failingCommand) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == h.name {
			cmd.SetErr(errors.New("injected failure"))
			return cmd.Err()
		}
		return next(ctx, cmd)
	}
}

func (h failingCommand) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisStore_HealthFailuresAreUnavailable(t *testing.T) {
	for _, name := range []string{"set", "get"} {
		t.Run(name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			client.AddHook(failingCommand{name: name})
			s := NewRedisStoreFromClient(client)
			defer s.Close()

			err := s.Health(context.Background())
			require.Error(t, err)
			assert.True(t, IsUnavailable(err), err)
		})
	}
}

func TestNewRedisStore_HonorsContextDeadlines(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultRedisConfig()
	cfg.Address = mr.Addr()

	s, err := NewRedisStore(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.Client().Options().ContextTimeoutEnabled)
}
