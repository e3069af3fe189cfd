package ratelimit

import (
	"context"
	"testing"
	"time"

	"qrattendance/internal/config"
)

func TestMemoryLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter()
	l.now = func() time.Time { return now }
	rule := config.RateLimit{Max: 2, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, _ := l.Allow(ctx, "ip:1", rule)
		if !d.Allowed {
			t.Fatalf("request %d should pass", i+1)
		}
	}

	d, _ := l.Allow(ctx, "ip:1", rule)
	if d.Allowed {
		t.Fatal("third request should be limited")
	}
	if d.RetryAfter != time.Minute {
		t.Fatalf("expected retry after 1m, got %s", d.RetryAfter)
	}

	if d, _ := l.Allow(ctx, "ip:2", rule); !d.Allowed {
		t.Fatal("keys must not share counters")
	}

	now = now.Add(time.Minute)
	if d, _ := l.Allow(ctx, "ip:1", rule); !d.Allowed || d.Remaining != 1 {
		t.Fatalf("window should reset, got %+v", d)
	}
}

func TestNewPicksStore(t *testing.T) {
	off, err := New(config.RateLimitConfig{Enabled: false, Store: "memory"}, nil)
	if err != nil || off != nil {
		t.Fatalf("disabled limiting must yield no limiter, got %v %v", off, err)
	}

	mem, err := New(config.RateLimitConfig{Enabled: true, Store: "memory"}, nil)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if _, ok := mem.(*MemoryLimiter); !ok {
		t.Fatalf("expected memory limiter, got %T", mem)
	}

	shared, err := New(config.RateLimitConfig{Enabled: true}, nil)
	if err != nil {
		t.Fatalf("default store: %v", err)
	}
	if _, ok := shared.(*RedisLimiter); !ok {
		t.Fatalf("expected redis limiter by default, got %T", shared)
	}

	if _, err := New(config.RateLimitConfig{Enabled: true, Store: "disk"}, nil); err == nil {
		t.Fatal("expected unknown store error")
	}
}
