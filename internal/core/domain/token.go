package domain

import "time"

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	// TokenTypeAccess identifies short-lived bearer tokens.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh identifies long-lived tokens exchangeable for new pairs.
	TokenTypeRefresh TokenType = "refresh"
)

// Valid reports whether the token type is one of the known kinds.
func (t TokenType) Valid() bool {
	return t == TokenTypeAccess || t == TokenTypeRefresh
}

// TokenClaims carries the decoded contents of a bearer token.
type TokenClaims struct {
	Subject   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	JTI       string
	Type      TokenType
}

// RemainingLifetime returns how long the token stays valid relative to now.
// Returns zero for tokens that already expired.
func (c TokenClaims) RemainingLifetime(now time.Time) time.Duration {
	remaining := c.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasRole reports whether the claims include the supplied role.
func (c TokenClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the claims intersect the required role set.
func (c TokenClaims) HasAnyRole(required []string) bool {
	for _, role := range required {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// RevokedTokenRecord captures a revoked token for the durable log.
type RevokedTokenRecord struct {
	JTI       string
	Subject   string
	RevokedAt time.Time
	ExpiresAt time.Time
	Reason    *string
}

// TokenPair bundles an access token with its refresh counterpart.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
