// Package ratelimit implements fixed-window request throttling keyed by
// client identifier.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Window    time.Duration
	ResetAt   time.Time
}

// RetryAfter is the time left until the window resets, never negative.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Limiter counts one request for key and decides whether it may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
}

// Sweeper is implemented by limiters that hold expired state in memory.
type Sweeper interface {
	Sweep() int
}
