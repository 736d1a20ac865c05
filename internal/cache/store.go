package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent. Absence is never an error to the
// read paths; they fall back to the durable store.
var ErrMiss = errors.New("cache: miss")

// Store is the cache abstraction used by the services. Implementations must
// treat an absent key as ErrMiss and must tolerate concurrent callers.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	HSet(ctx context.Context, key, field string, value []byte) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error

	// Expire resets the idle TTL on every given key in one round trip,
	// implementing the sliding-expiry contract.
	Expire(ctx context.Context, ttl time.Duration, keys ...string) error

	Ping(ctx context.Context) error
	Close() error
}
