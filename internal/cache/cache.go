// Package cache is the key/value layer under the catalog: a small contract
// with a Redis backend for deployments and an in-memory backend for
// standalone runs and tests. Every entry carries a TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMiss is returned when a key is absent or expired.
	ErrMiss = errors.New("cache miss")

	// ErrUnavailable wraps backend failures. Callers degrade to
	// pass-through reads when they see it.
	ErrUnavailable = errors.New("cache unavailable")

	// ErrNoTTL is returned by Set when ttl is not positive.
	ErrNoTTL = errors.New("cache entries require a positive ttl")
)

// Store is the key/value contract consumed by the catalog engine.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// TTL returns the remaining lifetime of key, or ErrMiss.
	TTL(ctx context.Context, key string) (time.Duration, error)
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// GetJSON loads key and decodes it into v.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		// A corrupt entry is treated like an absent one.
		return fmt.Errorf("%w: decode %s: %v", ErrMiss, key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}

// IsUnavailable reports whether err signals a cache outage.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
