// internal/ratelimit/redis.go
package ratelimit

import (
	"context"
	"time"

	"recruit-intake/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares fixed windows across instances with INCR and PEXPIRE.
// When Redis is unreachable requests are allowed through.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
	logger logger.Logger
	now    func() time.Time
}

func NewRedisLimiter(client redis.Cmdable, prefix string, limit int, window time.Duration, log logger.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		logger: log.WithFields(map[string]interface{}{"component": "redis-limiter"}),
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) Decision {
	now := l.now()
	redisKey := l.prefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return l.failOpen(now, key, err)
	}

	// First hit opens the window.
	if count == 1 {
		if err := l.client.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			return l.failOpen(now, key, err)
		}
	}

	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return l.failOpen(now, key, err)
	}
	if ttl < 0 {
		// Key lost its expiry; restart the window rather than block forever.
		if err := l.client.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			return l.failOpen(now, key, err)
		}
		ttl = l.window
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   int(count) <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		Window:    l.window,
		ResetAt:   now.Add(ttl),
	}
}

func (l *RedisLimiter) failOpen(now time.Time, key string, err error) Decision {
	l.logger.Warn("rate limit store unavailable, allowing request", map[string]interface{}{
		"clientId": key,
		"error":    err,
	})
	return Decision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit,
		Window:    l.window,
		ResetAt:   now.Add(l.window),
	}
}
