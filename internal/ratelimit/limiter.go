// Package ratelimit counts requests per key in fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"qrattendance/internal/config"
)

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, rule config.RateLimit) (Decision, error)
}

func decide(count int64, ttl time.Duration, rule config.RateLimit) Decision {
	d := Decision{Limit: rule.Max, Allowed: count <= int64(rule.Max)}
	if remaining := int64(rule.Max) - count; remaining > 0 {
		d.Remaining = int(remaining)
	}
	if !d.Allowed {
		d.RetryAfter = ttl
		if d.RetryAfter <= 0 {
			d.RetryAfter = rule.Window
		}
	}
	return d
}

// New picks the counter store named by cfg. It returns nil when limiting is
// disabled.
func New(cfg config.RateLimitConfig, client *redis.Client) (Limiter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Store {
	case "", "redis":
		return NewRedisLimiter(client), nil
	case "memory":
		return NewMemoryLimiter(), nil
	default:
		return nil, fmt.Errorf("unknown rate limit store %q", cfg.Store)
	}
}

// RedisLimiter shares counters between API instances.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "ratelimit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, rule config.RateLimit) (Decision, error) {
	k := l.prefix + key
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, rule.Window)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return decide(incr.Val(), ttl.Val(), rule), nil
}

type window struct {
	count int64
	reset time.Time
}

// MemoryLimiter keeps counters in process. It serves single-instance setups
// and tests.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]*window), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, rule config.RateLimit) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.reset) {
		w = &window{reset: now.Add(rule.Window)}
		l.windows[key] = w
		l.sweep(now)
	}
	w.count++
	return decide(w.count, w.reset.Sub(now), rule), nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.reset) {
			delete(l.windows, k)
		}
	}
}
