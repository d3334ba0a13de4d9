// Package ratelimit implements a process-local sliding-window rate limiter.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

// MemoryLimiter tracks request timestamps per key in memory. Counters live in
// a fixed number of shards, each guarded by its own mutex, so concurrent keys
// rarely contend. State is process-local; each instance enforces its own
// limits.
type MemoryLimiter struct {
	shards [shardCount]*shard
	now    func() time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

// NewMemoryLimiter creates an empty limiter.
func NewMemoryLimiter() *MemoryLimiter {
	l := &MemoryLimiter{now: time.Now}
	for i := range l.shards {
		l.shards[i] = &shard{entries: make(map[string][]time.Time)}
	}
	return l
}

// WithClock overrides the time source. Intended for tests.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

// Allow reports whether another request under key fits within limit requests
// per window. It prunes timestamps older than the window, then admits and
// records the request only when the remaining count is below the limit.
// Denied requests are not recorded.
func (l *MemoryLimiter) Allow(key string, limit int, window time.Duration) bool {
	if limit <= 0 {
		return false
	}

	now := l.now()
	cutoff := now.Add(-window)

	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	stamps := s.entries[key]

	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		s.entries[key] = kept
		return false
	}

	s.entries[key] = append(kept, now)
	return true
}

// PruneIdle removes keys whose every timestamp is older than the window.
// Meant to run periodically so abandoned keys do not accumulate.
func (l *MemoryLimiter) PruneIdle(window time.Duration) int {
	cutoff := l.now().Add(-window)
	removed := 0

	for _, s := range l.shards {
		s.mu.Lock()
		for key, stamps := range s.entries {
			idle := true
			for _, ts := range stamps {
				if ts.After(cutoff) {
					idle = false
					break
				}
			}
			if idle {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}

	return removed
}

func (l *MemoryLimiter) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}
