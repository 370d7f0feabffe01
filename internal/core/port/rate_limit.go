package port

import (
	"context"
	"time"
)

// RateLimitStore persists fixed-window request counters.
// IncrementWindow must be atomic across process instances: the counter is
// created with the supplied TTL on first increment and never outlives it.
type RateLimitStore interface {
	IncrementWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
