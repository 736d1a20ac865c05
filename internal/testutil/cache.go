package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"workpal/internal/cache"
)

// MemoryCache is an in-memory cache.Store for tests. It records per-key TTLs
// so sliding-expiry behavior can be asserted, and can be switched into a
// failing mode to exercise the degrade paths.
type MemoryCache struct {
	mu     sync.Mutex
	values map[string][]byte
	hashes map[string]map[string]string
	ttls   map[string]time.Duration

	// FailReads / FailWrites make every corresponding call return an error
	FailReads  bool
	FailWrites bool
}

var _ cache.Store = (*MemoryCache)(nil)

var errCacheDown = errors.New("cache unavailable")

// NewMemoryCache creates an empty in-memory store
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		values: make(map[string][]byte),
		hashes: make(map[string]map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads {
		return nil, errCacheDown
	}
	value, ok := m.values[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return value, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errCacheDown
	}
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errCacheDown
	}
	for _, key := range keys {
		delete(m.values, key)
		delete(m.hashes, key)
		delete(m.ttls, key)
	}
	return nil
}

func (m *MemoryCache) HSet(ctx context.Context, key, field string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errCacheDown
	}
	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string]string)
	}
	m.hashes[key][field] = string(value)
	return nil
}

func (m *MemoryCache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads {
		return nil, errCacheDown
	}
	fields, ok := m.hashes[key]
	if !ok || len(fields) == 0 {
		return nil, cache.ErrMiss
	}
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return copied, nil
}

func (m *MemoryCache) HDel(ctx context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errCacheDown
	}
	for _, field := range fields {
		delete(m.hashes[key], field)
	}
	return nil
}

func (m *MemoryCache) Expire(ctx context.Context, ttl time.Duration, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errCacheDown
	}
	for _, key := range keys {
		_, hasValue := m.values[key]
		_, hasHash := m.hashes[key]
		if hasValue || hasHash {
			m.ttls[key] = ttl
		}
	}
	return nil
}

func (m *MemoryCache) Ping(ctx context.Context) error { return nil }

func (m *MemoryCache) Close() error { return nil }

// TTL reports the last TTL recorded for a key, or zero when none was set
func (m *MemoryCache) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

// Evict drops a key without touching failure flags, simulating TTL expiry
func (m *MemoryCache) Evict(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	delete(m.hashes, key)
	delete(m.ttls, key)
}
