// internal/ratelimit/memory.go
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count   int
	resetAt time.Time
	lastHit time.Time
}

// MemoryLimiter is a process-local fixed-window limiter. It is not shared
// across instances. At most maxKeys buckets are kept. When full, expired
// buckets are swept first, then the least recently hit bucket that is not
// throttled is evicted. A full table of throttled buckets rejects new keys
// until one expires, so throttled clients never lose their count.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	maxKeys int
	now     func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration, maxKeys int) *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		maxKeys: maxKeys,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.After(b.resetAt) {
		if !ok {
			if freeAt, full := l.makeRoom(now); full {
				return l.decision(false, &bucket{count: l.limit, resetAt: freeAt})
			}
		}
		b = &bucket{count: 1, resetAt: now.Add(l.window), lastHit: now}
		l.buckets[key] = b
		return l.decision(true, b)
	}

	b.lastHit = now
	if b.count >= l.limit {
		return l.decision(false, b)
	}

	b.count++
	return l.decision(true, b)
}

// Sweep drops buckets whose window has passed and returns how many went.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(l.now())
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *MemoryLimiter) sweepLocked(now time.Time) int {
	removed := 0
	for key, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// makeRoom frees a slot for a new key. When every bucket is throttled it
// reports full along with the earliest instant a slot frees up.
func (l *MemoryLimiter) makeRoom(now time.Time) (time.Time, bool) {
	if l.maxKeys <= 0 || len(l.buckets) < l.maxKeys {
		return time.Time{}, false
	}
	if l.sweepLocked(now) > 0 {
		return time.Time{}, false
	}

	var coldKey string
	var cold, freeAt time.Time
	for key, b := range l.buckets {
		if freeAt.IsZero() || b.resetAt.Before(freeAt) {
			freeAt = b.resetAt
		}
		if b.count >= l.limit {
			continue
		}
		if coldKey == "" || b.lastHit.Before(cold) {
			coldKey, cold = key, b.lastHit
		}
	}
	if coldKey == "" {
		return freeAt, true
	}
	delete(l.buckets, coldKey)
	return time.Time{}, false
}

func (l *MemoryLimiter) decision(allowed bool, b *bucket) Decision {
	remaining := l.limit - b.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: remaining,
		Window:    l.window,
		ResetAt:   b.resetAt,
	}
}
