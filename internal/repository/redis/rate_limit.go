package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/Ajirohack/API/internal/core/port"
)

// FixedWindowConfig defines configuration for the fixed-window limiter.
type FixedWindowConfig struct {
	KeyPrefix string
}

// RateLimitRepository persists fixed-window request counters in Redis.
// Counters are created lazily with a TTL covering the window and never
// outlive it, so the keyspace is self-cleaning.
type RateLimitRepository struct {
	client *red.Client
	cfg    FixedWindowConfig
}

// NewRateLimitRepository constructs a repository using the provided Redis client and config.
func NewRateLimitRepository(client *red.Client, cfg FixedWindowConfig) *RateLimitRepository {
	return &RateLimitRepository{client: client, cfg: cfg}
}

// IncrementWindow atomically increments the window counter, attaching the
// TTL on first increment only. Returns the post-increment count.
func (r *RateLimitRepository) IncrementWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if strings.TrimSpace(key) == "" {
		return 0, errors.New("key must not be empty")
	}
	if ttl <= 0 {
		return 0, errors.New("ttl must be positive")
	}

	storageKey := r.key(key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, storageKey)
	pipe.ExpireNX(ctx, storageKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr window: %w", err)
	}

	return incr.Val(), nil
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.cfg.KeyPrefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", r.cfg.KeyPrefix, identifier)
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
