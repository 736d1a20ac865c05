package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"workpal/internal/logger"
)

// GetOrLoad is the shared cache-aside read path: check the cache, fall back
// to the loader on miss, and mirror the loaded value back with a TTL.
//
// Cache failures are absorbed: a read error counts as a miss and a write-back
// error only logs. The loader's error is the caller's error. The returned
// bool reports whether the value came from the cache.
func GetOrLoad[T any](ctx context.Context, store Store, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	var zero T

	data, err := store.Get(ctx, key)
	if err == nil {
		var value T
		if err := json.Unmarshal(data, &value); err == nil {
			return value, true, nil
		}
		logger.Log.WithField("key", key).Warn("Discarding unreadable cache entry")
	} else if !errors.Is(err, ErrMiss) {
		logger.Log.WithError(err).WithField("key", key).Warn("Cache read failed, treating as miss")
	}

	value, err := load(ctx)
	if err != nil {
		return zero, false, err
	}

	Put(ctx, store, key, ttl, value)
	return value, false, nil
}

// Put mirrors a value into the cache best-effort; failures only log
func Put(ctx context.Context, store Store, key string, ttl time.Duration, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("Failed to marshal cache value")
		return
	}
	if err := store.Set(ctx, key, data, ttl); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("Failed to mirror value into cache")
	}
}

// GetCached reads and decodes a cached value without any fallback. Returns
// false on miss, on a cache failure, or on an undecodable entry.
func GetCached[T any](ctx context.Context, store Store, key string) (T, bool) {
	var zero T

	data, err := store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			logger.Log.WithError(err).WithField("key", key).Warn("Cache read failed, treating as miss")
		}
		return zero, false
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		logger.Log.WithField("key", key).Warn("Discarding unreadable cache entry")
		return zero, false
	}
	return value, true
}
