package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterWindow(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }})

	for i := 0; i < 2; i++ {
		decision, err := limiter.Allow(context.Background(), "k", 2, time.Minute)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	decision, err := limiter.Allow(context.Background(), "k", 2, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if decision.Allowed {
		t.Fatal("third request in window should be rejected")
	}
	if decision.Remaining != 0 {
		t.Fatalf("remaining should be 0, got %d", decision.Remaining)
	}

	now = now.Add(2 * time.Minute)
	decision, err = limiter.Allow(context.Background(), "k", 2, time.Minute)
	if err != nil {
		t.Fatalf("allow after rollover: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("request after window rollover should be allowed")
	}
}

func TestMemoryLimiterZeroLimitAlwaysAllows(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	decision, err := limiter.Allow(context.Background(), "k", 0, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("zero limit must disable limiting")
	}
}

func TestMemoryLimiterIsolatesKeys(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }})

	if decision, _ := limiter.Allow(context.Background(), "a", 1, time.Minute); !decision.Allowed {
		t.Fatal("first request for key a should pass")
	}
	if decision, _ := limiter.Allow(context.Background(), "a", 1, time.Minute); decision.Allowed {
		t.Fatal("second request for key a should be rejected")
	}
	if decision, _ := limiter.Allow(context.Background(), "b", 1, time.Minute); !decision.Allowed {
		t.Fatal("key b must have its own window")
	}
}
