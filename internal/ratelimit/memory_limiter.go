package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type bucket struct {
	requests []time.Time
}

// MemoryLimiter is an in-memory sliding-window implementation of Limiter,
// suitable for single-process deployments.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	log     *slog.Logger
}

// NewMemoryLimiter returns an in-memory limiter implementation.
func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		log:     log,
	}
}

// Check enforces a sliding-window limit for the provided key.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	bkt, ok := m.buckets[key]
	if !ok {
		bkt = &bucket{}
		m.buckets[key] = bkt
	}

	bkt.requests = keepRecent(bkt.requests, windowStart)
	count := len(bkt.requests)

	allowed := count < limit
	if allowed {
		bkt.requests = append(bkt.requests, now)
		count++
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   windowStart.Add(window),
	}

	if !allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}

// Sweep drops buckets whose newest entry is older than the window. Call
// periodically to bound memory on long-running processes.
func (m *MemoryLimiter) Sweep(window time.Duration) {
	cutoff := time.Now().Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, bkt := range m.buckets {
		bkt.requests = keepRecent(bkt.requests, cutoff)
		if len(bkt.requests) == 0 {
			delete(m.buckets, key)
		}
	}
}

func keepRecent(requests []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for ; idx < len(requests); idx++ {
		if requests[idx].After(cutoff) {
			break
		}
	}
	return requests[idx:]
}
