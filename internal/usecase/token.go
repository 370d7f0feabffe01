package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/core/port"
	"github.com/Ajirohack/API/internal/infra/config"
	"github.com/Ajirohack/API/internal/infra/logger"
	"github.com/Ajirohack/API/internal/infra/security"
	"github.com/Ajirohack/API/internal/infra/telemetry"
	"github.com/Ajirohack/API/internal/repository"
)

// TokenService mints, decodes, and revokes bearer tokens. Every decode
// consults the revocation store so a revoked token is rejected on its next
// presentation, not only at login.
type TokenService struct {
	cfg         *config.AppConfig
	signer      *security.Signer
	revocations *RevocationStore
	users       port.UserDirectory
	events      port.EventPublisher
	metrics     *telemetry.Provider
	logger      *zap.Logger
	now         func() time.Time
}

// NewTokenService constructs a TokenService instance.
func NewTokenService(
	cfg *config.AppConfig,
	signer *security.Signer,
	revocations *RevocationStore,
	users port.UserDirectory,
	events port.EventPublisher,
	log *zap.Logger,
) *TokenService {
	if log == nil {
		log = zap.NewNop()
	}

	service := &TokenService{
		cfg:         cfg,
		signer:      signer,
		revocations: revocations,
		users:       users,
		events:      events,
		logger:      log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *TokenService) WithClock(clock func() time.Time) *TokenService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithMetrics attaches the telemetry provider feeding the revocation counter.
func (s *TokenService) WithMetrics(metrics *telemetry.Provider) *TokenService {
	s.metrics = metrics
	return s
}

// Mint issues a signed token of the requested type for the subject.
func (s *TokenService) Mint(subject string, roles []string, tokenType domain.TokenType) (string, domain.TokenClaims, error) {
	claims, err := security.NewTokenClaims(security.TokenOptions{
		Subject:  subject,
		Roles:    roles,
		Type:     tokenType,
		Issuer:   s.issuer(),
		TTL:      s.ttlFor(tokenType),
		IssuedAt: s.now(),
	})
	if err != nil {
		return "", domain.TokenClaims{}, fmt.Errorf("build claims: %w", err)
	}

	signed, err := s.signer.Sign(claims)
	if err != nil {
		return "", domain.TokenClaims{}, err
	}

	return signed, claims.Domain(), nil
}

// MintPair issues an access/refresh token pair for the subject.
func (s *TokenService) MintPair(subject string, roles []string) (domain.TokenPair, error) {
	access, accessClaims, err := s.Mint(subject, roles, domain.TokenTypeAccess)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, _, err := s.Mint(subject, roles, domain.TokenTypeRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessClaims.ExpiresAt,
	}, nil
}

// IssuePairForUser resolves the subject against the user directory and mints
// a pair carrying the account's current roles.
func (s *TokenService) IssuePairForUser(ctx context.Context, userID string) (domain.TokenPair, error) {
	if s.users == nil {
		return domain.TokenPair{}, fmt.Errorf("user directory not configured")
	}

	user, err := s.users.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.TokenPair{}, repository.ErrNotFound
		}
		return domain.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.Active {
		return domain.TokenPair{}, ErrInactiveAccount
	}

	return s.MintPair(user.ID, user.Roles)
}

// Decode verifies the token signature, optionally its expiry, and its
// revocation state. Fails with ErrInvalidToken, ErrTokenExpired, or
// ErrTokenRevoked.
func (s *TokenService) Decode(ctx context.Context, token string, verifyExpiry bool) (*domain.TokenClaims, error) {
	claims, err := s.parse(token, verifyExpiry)
	if err != nil {
		return nil, err
	}

	if s.revocations != nil && claims.JTI != "" {
		if revoked, reason := s.revocations.IsRevoked(ctx, claims.JTI); revoked {
			s.logger.Info("revoked token presented",
				zap.String("jti", claims.JTI),
				zap.String("subject", claims.Subject),
				zap.String("reason", reason),
			)
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// Revoke invalidates the token immediately. Works on expired tokens as well,
// closing replay windows, and is a no-op for already-revoked tokens.
func (s *TokenService) Revoke(ctx context.Context, token string, reason string) error {
	claims, err := s.Decode(ctx, token, false)
	if errors.Is(err, ErrTokenRevoked) {
		return nil
	}
	if err != nil {
		return err
	}

	now := s.now()
	normalized := normalizeRevocationReason(reason)
	reasonCopy := normalized
	record := domain.RevokedTokenRecord{
		JTI:       claims.JTI,
		Subject:   claims.Subject,
		RevokedAt: now,
		ExpiresAt: claims.ExpiresAt,
		Reason:    &reasonCopy,
	}

	s.revocations.MarkRevoked(ctx, record)
	s.metrics.TokensRevoked().Inc()

	s.logger.Info("token revoked",
		zap.String("jti", claims.JTI),
		zap.String("subject", claims.Subject),
		zap.String("reason", normalized),
	)

	if s.events != nil {
		event := domain.TokenRevokedEvent{
			JTI:       claims.JTI,
			Subject:   claims.Subject,
			RevokedAt: now,
			ExpiresAt: claims.ExpiresAt,
			Reason:    normalized,
		}
		if err := s.events.PublishTokenRevoked(ctx, event); err != nil {
			s.logger.Warn("publish token revoked event failed", zap.String("jti", claims.JTI), zap.Error(err))
		}
	}

	return nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented
// refresh token is consumed: it is revoked so it cannot be replayed.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.Decode(ctx, refreshToken, true)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if claims.Type != domain.TokenTypeRefresh {
		return domain.TokenPair{}, ErrWrongTokenType
	}

	pair, err := s.MintPair(claims.Subject, claims.Roles)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := s.Revoke(ctx, refreshToken, "refresh_rotation"); err != nil {
		s.logger.Warn("revoke rotated refresh token failed",
			zap.String("token", logger.MaskToken(refreshToken)),
			zap.Error(err),
		)
	}

	return pair, nil
}

// Authorize checks the claims against a required role set.
func (s *TokenService) Authorize(claims *domain.TokenClaims, requiredRoles ...string) error {
	if claims == nil {
		return ErrInvalidToken
	}
	if len(requiredRoles) == 0 {
		return nil
	}
	if !claims.HasAnyRole(requiredRoles) {
		return ErrForbidden
	}
	return nil
}

func (s *TokenService) parse(token string, verifyExpiry bool) (*domain.TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	if s.signer == nil {
		return nil, fmt.Errorf("signer not configured")
	}

	claims := &security.TokenClaims{}

	parserOptions := []jwt.ParserOption{jwt.WithTimeFunc(s.now)}
	if !verifyExpiry {
		parserOptions = append(parserOptions, jwt.WithoutClaimsValidation())
	}

	parsed, err := jwt.ParseWithClaims(token, claims, s.signer.Keyfunc, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	result := claims.Domain()
	if result.Subject == "" || result.JTI == "" || !result.Type.Valid() {
		return nil, ErrInvalidToken
	}

	return &result, nil
}

func (s *TokenService) issuer() string {
	if s.cfg == nil {
		return ""
	}
	if issuer := strings.TrimSpace(s.cfg.JWT.Issuer); issuer != "" {
		return issuer
	}
	return strings.TrimSpace(s.cfg.App.Name)
}

func (s *TokenService) ttlFor(tokenType domain.TokenType) time.Duration {
	if s.cfg == nil {
		return 0
	}
	if tokenType == domain.TokenTypeRefresh {
		return s.cfg.JWT.RefreshTokenTTL
	}
	return s.cfg.JWT.AccessTokenTTL
}

func normalizeRevocationReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "revoked"
	}
	return reason
}
