package api

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("u1") || !rl.Allow("u1") {
		t.Fatal("expected first two requests to pass")
	}
	if rl.Allow("u1") {
		t.Error("expected third request to be limited")
	}
	if !rl.Allow("u2") {
		t.Error("limits must be per key")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("u1") {
		t.Error("expected window to slide")
	}
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	defer rl.Stop()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow("u1")

	now = now.Add(2 * time.Minute)
	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.requests["u1"]; ok {
		t.Error("expected idle key to be evicted")
	}
}
