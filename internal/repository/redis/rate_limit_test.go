package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitRepository_IncrementWindow(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, FixedWindowConfig{KeyPrefix: "ratelimit"})

	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, err := repo.IncrementWindow(ctx, "guest:alice:12345", time.Minute)
		if err != nil {
			t.Fatalf("IncrementWindow returned error: %v", err)
		}
		if count != want {
			t.Fatalf("expected count %d, got %d", want, count)
		}
	}

	remaining := server.TTL("ratelimit:guest:alice:12345")
	if remaining <= 0 || remaining > time.Minute {
		t.Fatalf("expected ttl within (0, 1m], got %v", remaining)
	}
}

func TestRateLimitRepository_TTLSetOnce(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, FixedWindowConfig{KeyPrefix: "ratelimit"})

	ctx := context.Background()
	if _, err := repo.IncrementWindow(ctx, "user:bob:777", time.Minute); err != nil {
		t.Fatalf("IncrementWindow returned error: %v", err)
	}

	server.FastForward(30 * time.Second)

	// A later increment must not refresh the window expiry.
	if _, err := repo.IncrementWindow(ctx, "user:bob:777", time.Minute); err != nil {
		t.Fatalf("IncrementWindow returned error: %v", err)
	}

	remaining := server.TTL("ratelimit:user:bob:777")
	if remaining > 30*time.Second {
		t.Fatalf("expected ttl at most 30s after fast-forward, got %v", remaining)
	}
}

func TestRateLimitRepository_CounterExpiresAtWindowEnd(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, FixedWindowConfig{KeyPrefix: "ratelimit"})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := repo.IncrementWindow(ctx, "guest:carol:1", time.Minute); err != nil {
			t.Fatalf("IncrementWindow returned error: %v", err)
		}
	}

	server.FastForward(61 * time.Second)

	count, err := repo.IncrementWindow(ctx, "guest:carol:1", time.Minute)
	if err != nil {
		t.Fatalf("IncrementWindow returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected fresh window to restart at 1, got %d", count)
	}
}

func TestRateLimitRepository_InvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, FixedWindowConfig{KeyPrefix: "ratelimit"})

	if _, err := repo.IncrementWindow(context.Background(), "", time.Minute); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := repo.IncrementWindow(context.Background(), "k", 0); err == nil {
		t.Fatalf("expected error for non-positive ttl")
	}
}
