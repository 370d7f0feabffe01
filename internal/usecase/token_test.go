package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/infra/config"
	"github.com/Ajirohack/API/internal/infra/security"
	"github.com/Ajirohack/API/internal/infra/telemetry"
	"github.com/Ajirohack/API/internal/repository"
)

type fakeRevocationCache struct {
	mu      sync.Mutex
	entries map[string]string
	failAll bool
}

func newFakeRevocationCache() *fakeRevocationCache {
	return &fakeRevocationCache{entries: make(map[string]string)}
}

func (c *fakeRevocationCache) MarkRevoked(_ context.Context, jti, reason string, _ time.Duration) error {
	if c.failAll {
		return errors.New("cache unavailable")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[jti] = reason
	return nil
}

func (c *fakeRevocationCache) IsRevoked(_ context.Context, jti string) (bool, string, error) {
	if c.failAll {
		return false, "", errors.New("cache unavailable")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	reason, ok := c.entries[jti]
	return ok, reason, nil
}

type fakeRevocationLog struct {
	mu      sync.Mutex
	records []domain.RevokedTokenRecord
	failAll bool
}

func (l *fakeRevocationLog) Append(_ context.Context, record domain.RevokedTokenRecord) error {
	if l.failAll {
		return errors.New("database unavailable")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

type fakeUserDirectory struct {
	users map[string]*domain.User
}

func (d *fakeUserDirectory) GetUser(_ context.Context, id string) (*domain.User, error) {
	user, ok := d.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		App: config.AppSettings{Name: "platform-gateway", Env: "test"},
		JWT: config.JWTSettings{
			Secret:          "test-secret-please-rotate",
			Issuer:          "platform-gateway",
			AccessTokenTTL:  30 * time.Minute,
			RefreshTokenTTL: 168 * time.Hour,
		},
	}
}

type tokenFixture struct {
	service *TokenService
	cache   *fakeRevocationCache
	log     *fakeRevocationLog
	now     *time.Time
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()

	signer, err := security.NewSigner(testConfig().JWT.Secret)
	if err != nil {
		t.Fatalf("NewSigner returned error: %v", err)
	}

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	cache := newFakeRevocationCache()
	log := &fakeRevocationLog{}
	store := NewRevocationStore(cache, log, nil).WithClock(clock)

	users := &fakeUserDirectory{users: map[string]*domain.User{
		"alice": {ID: "alice", Username: "alice", Roles: []string{"user"}, Active: true},
		"mallory": {
			ID: "mallory", Username: "mallory", Roles: []string{"user"}, Active: false,
		},
	}}

	service := NewTokenService(testConfig(), signer, store, users, nil, nil).WithClock(clock)

	return &tokenFixture{service: service, cache: cache, log: log, now: &now}
}

func TestTokenService_MintDecodeRoundTrip(t *testing.T) {
	fx := newTokenFixture(t)

	token, claims, err := fx.service.Mint("alice", []string{"user", "editor"}, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}
	if claims.JTI == "" {
		t.Fatalf("expected minted token to carry a jti")
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		t.Fatalf("expected expiry after issue time")
	}

	decoded, err := fx.service.Decode(context.Background(), token, true)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if decoded.Subject != "alice" {
		t.Fatalf("expected subject alice, got %s", decoded.Subject)
	}
	if !decoded.HasRole("user") || !decoded.HasRole("editor") {
		t.Fatalf("expected roles preserved, got %v", decoded.Roles)
	}
	if decoded.Type != domain.TokenTypeAccess {
		t.Fatalf("expected access token type, got %s", decoded.Type)
	}
}

func TestTokenService_UniqueJTIPerMint(t *testing.T) {
	fx := newTokenFixture(t)

	_, first, err := fx.service.Mint("alice", []string{"user"}, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}
	_, second, err := fx.service.Mint("alice", []string{"user"}, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}
	if first.JTI == second.JTI {
		t.Fatalf("expected distinct jti values, both were %s", first.JTI)
	}
}

func TestTokenService_DecodeExpired(t *testing.T) {
	fx := newTokenFixture(t)

	token, _, err := fx.service.Mint("alice", []string{"user"}, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	*fx.now = fx.now.Add(31 * time.Minute)

	if _, err := fx.service.Decode(context.Background(), token, true); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	// Expiry verification can be bypassed, e.g. on the revoke path.
	if _, err := fx.service.Decode(context.Background(), token, false); err != nil {
		t.Fatalf("expected decode without expiry check to succeed, got %v", err)
	}
}

func TestTokenService_DecodeTampered(t *testing.T) {
	fx := newTokenFixture(t)

	token, _, err := fx.service.Mint("alice", []string{"user"}, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := fx.service.Decode(context.Background(), tampered, true); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	if _, err := fx.service.Decode(context.Background(), "not-a-token", true); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage input, got %v", err)
	}
}

func TestTokenService_RevokeBlocksDecode(t *testing.T) {
	fx := newTokenFixture(t)

	token, claims, err := fx.service.Mint("alice", []string{"user"}, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	if err := fx.service.Revoke(context.Background(), token, "user_logout"); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	if _, err := fx.service.Decode(context.Background(), token, true); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked before natural expiry, got %v", err)
	}

	if len(fx.log.records) != 1 {
		t.Fatalf("expected one durable log record, got %d", len(fx.log.records))
	}
	if fx.log.records[0].JTI != claims.JTI || fx.log.records[0].Subject != "alice" {
		t.Fatalf("unexpected durable record: %+v", fx.log.records[0])
	}
}

func TestTokenService_RevokeIdempotent(t *testing.T) {
	fx := newTokenFixture(t)

	token, _, err := fx.service.Mint("alice", []string{"user"}, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	if err := fx.service.Revoke(context.Background(), token, "user_logout"); err != nil {
		t.Fatalf("first Revoke returned error: %v", err)
	}
	if err := fx.service.Revoke(context.Background(), token, "user_logout"); err != nil {
		t.Fatalf("second Revoke should be a no-op, got %v", err)
	}

	if len(fx.log.records) != 1 {
		t.Fatalf("expected durable log written once, got %d records", len(fx.log.records))
	}
}

func TestTokenService_RevokeExpiredToken(t *testing.T) {
	fx := newTokenFixture(t)

	token, _, err := fx.service.Mint("alice", []string{"user"}, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	*fx.now = fx.now.Add(31 * time.Minute)

	// A token must remain revocable past expiry to close replay windows.
	if err := fx.service.Revoke(context.Background(), token, "cleanup"); err != nil {
		t.Fatalf("Revoke of expired token returned error: %v", err)
	}
	if len(fx.log.records) != 1 {
		t.Fatalf("expected durable record for expired token, got %d", len(fx.log.records))
	}
}

func TestTokenService_RevokeSurvivesDurableFailure(t *testing.T) {
	fx := newTokenFixture(t)
	fx.log.failAll = true

	token, _, err := fx.service.Mint("alice", []string{"user"}, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	// Cache is written first, so the hot path is protected even when the
	// durable tier is down and the call still reports success.
	if err := fx.service.Revoke(context.Background(), token, "user_logout"); err != nil {
		t.Fatalf("Revoke should tolerate durable failure, got %v", err)
	}

	if _, err := fx.service.Decode(context.Background(), token, true); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked via cache tier, got %v", err)
	}
}

func TestTokenService_DecodeFailsOpenOnCacheOutage(t *testing.T) {
	fx := newTokenFixture(t)

	token, _, err := fx.service.Mint("alice", []string{"user"}, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	fx.cache.failAll = true

	if _, err := fx.service.Decode(context.Background(), token, true); err != nil {
		t.Fatalf("expected decode to fail open on cache outage, got %v", err)
	}
}

func TestTokenService_Authorize(t *testing.T) {
	fx := newTokenFixture(t)

	_, claims, err := fx.service.Mint("alice", []string{"user"}, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	if err := fx.service.Authorize(&claims, "admin", "user"); err != nil {
		t.Fatalf("expected intersecting roles to authorize, got %v", err)
	}
	if err := fx.service.Authorize(&claims); err != nil {
		t.Fatalf("expected empty requirement to authorize, got %v", err)
	}
	if err := fx.service.Authorize(&claims, "admin"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := fx.service.Authorize(nil, "admin"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for nil claims, got %v", err)
	}
}

func TestTokenService_RefreshRotatesPair(t *testing.T) {
	fx := newTokenFixture(t)

	pair, err := fx.service.MintPair("alice", []string{"user"})
	if err != nil {
		t.Fatalf("MintPair returned error: %v", err)
	}

	rotated, err := fx.service.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if rotated.AccessToken == "" || rotated.RefreshToken == "" {
		t.Fatalf("expected a complete rotated pair")
	}

	// The presented refresh token is consumed by rotation.
	if _, err := fx.service.Decode(context.Background(), pair.RefreshToken, true); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected consumed refresh token to be revoked, got %v", err)
	}
}

func TestTokenService_RefreshRejectsAccessToken(t *testing.T) {
	fx := newTokenFixture(t)

	pair, err := fx.service.MintPair("alice", []string{"user"})
	if err != nil {
		t.Fatalf("MintPair returned error: %v", err)
	}

	if _, err := fx.service.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestTokenService_IssuePairForUser(t *testing.T) {
	fx := newTokenFixture(t)
	ctx := context.Background()

	pair, err := fx.service.IssuePairForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("IssuePairForUser returned error: %v", err)
	}

	claims, err := fx.service.Decode(ctx, pair.AccessToken, true)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if !claims.HasRole("user") {
		t.Fatalf("expected directory roles on minted token, got %v", claims.Roles)
	}

	if _, err := fx.service.IssuePairForUser(ctx, "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown subject, got %v", err)
	}
	if _, err := fx.service.IssuePairForUser(ctx, "mallory"); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
}

func TestTokenService_RevokeIncrementsMetric(t *testing.T) {
	fx := newTokenFixture(t)

	metrics, err := telemetry.Attach(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}
	fx.service.WithMetrics(metrics)

	token, _, err := fx.service.Mint("alice", []string{"user"}, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	if err := fx.service.Revoke(context.Background(), token, "user_logout"); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if got := testutil.ToFloat64(metrics.TokensRevoked()); got != 1 {
		t.Fatalf("expected revocation counter 1, got %v", got)
	}

	// Revoking an already-revoked token is a no-op and must not count again.
	if err := fx.service.Revoke(context.Background(), token, "user_logout"); err != nil {
		t.Fatalf("second Revoke returned error: %v", err)
	}
	if got := testutil.ToFloat64(metrics.TokensRevoked()); got != 1 {
		t.Fatalf("expected revocation counter to stay at 1, got %v", got)
	}
}
