// Package ratelimit holds the in-process sliding-window request log.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/eishro/storeguard/internal/models"
)

// MemoryStoreConfig configures a MemoryStore
type MemoryStoreConfig struct {
	// Retention is the horizon Cleanup prunes to. Defaults to one hour.
	Retention time.Duration
	Now       func() time.Time
}

// MemoryStore records request timestamps per key using a sliding window log.
// RecordRequest and IsRateLimited are separate calls; Allow checks and records
// under one lock. Safe for concurrent use. No goroutine is started; Cleanup is driven
// by the background cleanup manager.
type MemoryStore struct {
	mu        sync.Mutex
	buckets   map[string][]time.Time
	retention time.Duration
	now       func() time.Time
}

func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	if cfg.Retention <= 0 {
		cfg.Retention = models.DefaultRateLimitRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &MemoryStore{
		buckets:   make(map[string][]time.Time),
		retention: cfg.Retention,
		now:       cfg.Now,
	}
}

// prune drops timestamps outside window for key and returns what is left.
// Callers must hold mu.
func (m *MemoryStore) prune(key string, window time.Duration, now time.Time) []time.Time {
	if window <= 0 {
		window = models.DefaultRateLimitWindow
	}
	ts, ok := m.buckets[key]
	if !ok {
		return nil
	}
	ts = filterValid(ts, now.Add(-window))
	m.buckets[key] = ts
	return ts
}

// RecordRequest appends now to key's log. It always returns true.
func (m *MemoryStore) RecordRequest(_ context.Context, key string, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	ts := m.prune(key, window, now)
	m.buckets[key] = append(ts, now)
	return true, nil
}

// Allow records now for key and reports true when key has fewer than limit
// requests inside window. A rejected request is not recorded. The returned
// count is the remaining allowance after this call.
func (m *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	ts := m.prune(key, window, now)
	if len(ts) >= limit {
		return false, 0, nil
	}
	m.buckets[key] = append(ts, now)
	return true, limit - len(ts) - 1, nil
}

// IsRateLimited reports whether key has max or more requests inside window.
func (m *MemoryStore) IsRateLimited(_ context.Context, key string, max int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.prune(key, window, m.now())) >= max, nil
}

// Remaining returns max minus the requests inside window, floored at zero.
func (m *MemoryStore) Remaining(_ context.Context, key string, max int, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := max - len(m.prune(key, window, m.now()))
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (m *MemoryStore) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.buckets, key)
	m.mu.Unlock()
	return nil
}

// Cleanup prunes every key to the retention horizon and deletes empty keys.
// It returns the number of keys deleted.
func (m *MemoryStore) Cleanup(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.retention)
	var removed int64
	for key, ts := range m.buckets {
		ts = filterValid(ts, cutoff)
		if len(ts) == 0 {
			delete(m.buckets, key)
			removed++
			continue
		}
		m.buckets[key] = ts
	}
	return removed, nil
}

// Sweep lets the store be registered with the cleanup manager.
func (m *MemoryStore) Sweep(ctx context.Context) (int64, error) {
	return m.Cleanup(ctx)
}

// Stats returns current store statistics for monitoring.
func (m *MemoryStore) Stats() models.RateLimitStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := models.RateLimitStats{Keys: len(m.buckets)}
	for _, ts := range m.buckets {
		stats.Timestamps += len(ts)
	}
	return stats
}

// filterValid returns only timestamps after the cutoff, reusing the backing array.
func filterValid(timestamps []time.Time, cutoff time.Time) []time.Time {
	valid := timestamps[:0]
	for _, t := range timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}
