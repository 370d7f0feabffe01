package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/core/port"
)

// RevocationStore combines the fast cache tier with the durable log.
//
// The cache is written first so the decode hot path is protected even when
// the durable append is slow or failing. Lookups consult the cache only;
// after a cache restart a revoked token may validate again until its natural
// expiry, a bounded exposure accepted for hot-path latency.
type RevocationStore struct {
	cache  port.RevocationCache
	log    port.RevocationLog
	logger *zap.Logger
	now    func() time.Time
}

// NewRevocationStore wires the two tiers into a single store.
func NewRevocationStore(cache port.RevocationCache, log port.RevocationLog, logger *zap.Logger) *RevocationStore {
	if logger == nil {
		logger = zap.NewNop()
	}

	store := &RevocationStore{
		cache:  cache,
		log:    log,
		logger: logger,
	}
	store.now = func() time.Time { return time.Now().UTC() }
	return store
}

// WithClock overrides the store clock for deterministic tests.
func (s *RevocationStore) WithClock(clock func() time.Time) *RevocationStore {
	if clock != nil {
		s.now = clock
	}
	return s
}

// IsRevoked reports whether the JTI is revoked. Cache tier only; a cache
// failure is logged and treated as not revoked rather than taking every
// token decode down with the cache.
func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, string) {
	if s.cache == nil || jti == "" {
		return false, ""
	}

	revoked, reason, err := s.cache.IsRevoked(ctx, jti)
	if err != nil {
		s.logger.Warn("revocation cache check failed", zap.String("jti", jti), zap.Error(err))
		return false, ""
	}

	return revoked, reason
}

// MarkRevoked records the revocation in both tiers. The call reports success
// even when a tier write fails; failures are logged for alerting.
func (s *RevocationStore) MarkRevoked(ctx context.Context, record domain.RevokedTokenRecord) {
	ttl := record.ExpiresAt.Sub(s.now())
	if ttl < 0 {
		ttl = 0
	}

	reason := ""
	if record.Reason != nil {
		reason = *record.Reason
	}

	if s.cache != nil && ttl > 0 {
		if err := s.cache.MarkRevoked(ctx, record.JTI, reason, ttl); err != nil {
			s.logger.Warn("cache revoked token failed", zap.String("jti", record.JTI), zap.Error(err))
		}
	}

	if s.log != nil {
		if err := s.log.Append(ctx, record); err != nil {
			s.logger.Error("durable revocation write failed", zap.String("jti", record.JTI), zap.Error(err))
		}
	}
}
