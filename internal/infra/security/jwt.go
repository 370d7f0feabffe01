package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/Ajirohack/API/internal/core/domain"
)

// ErrSecretMissing indicates the signing secret was not configured.
var ErrSecretMissing = errors.New("jwt: signing secret is required")

// TokenClaims augments registered claims with platform roles and token type.
type TokenClaims struct {
	Roles []string `json:"roles,omitempty"`
	Type  string   `json:"type"`
	jwt.RegisteredClaims
}

// Domain converts the wire claims into the transport-agnostic representation.
func (c *TokenClaims) Domain() domain.TokenClaims {
	out := domain.TokenClaims{
		Subject: c.Subject,
		Roles:   normalizeRoles(c.Roles),
		JTI:     c.ID,
		Type:    domain.TokenType(c.Type),
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

// TokenOptions configures creation of token claims.
type TokenOptions struct {
	Subject  string
	Roles    []string
	Type     domain.TokenType
	Issuer   string
	TTL      time.Duration
	IssuedAt time.Time
	JTI      string
}

const defaultAccessTokenTTL = 30 * time.Minute

// NewTokenClaims constructs standardized claims for minting.
// Every minted token receives a unique jti and an expiry strictly after
// its issue time.
func NewTokenClaims(opts TokenOptions) (*TokenClaims, error) {
	subject := strings.TrimSpace(opts.Subject)
	if subject == "" {
		return nil, fmt.Errorf("jwt: subject is required")
	}
	if !opts.Type.Valid() {
		return nil, fmt.Errorf("jwt: unknown token type %q", opts.Type)
	}

	now := opts.IssuedAt
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	jti := strings.TrimSpace(opts.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := &TokenClaims{
		Roles: normalizeRoles(opts.Roles),
		Type:  string(opts.Type),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    strings.TrimSpace(opts.Issuer),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}

	return claims, nil
}

// Signer signs and verifies tokens with a single shared HS256 secret.
type Signer struct {
	secret []byte
}

// NewSigner constructs a Signer for the supplied shared secret.
func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretMissing
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign produces a compact serialized token for the supplied claims.
func (s *Signer) Sign(claims *TokenClaims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("jwt: claims required")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// Keyfunc returns the verification key while rejecting any non-HMAC
// signing method declared in the token header.
func (s *Signer) Keyfunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return s.secret, nil
}

func normalizeRoles(input []string) []string {
	if len(input) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(input))
	result := make([]string, 0, len(input))
	for _, role := range input {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, exists := seen[role]; exists {
			continue
		}
		seen[role] = struct{}{}
		result = append(result, role)
	}

	if len(result) == 0 {
		return nil
	}

	return result
}
