package usecase

import "errors"

var (
	// ErrInvalidToken indicates a malformed token or bad signature.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates the token elapsed its validity window.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked indicates the token was explicitly revoked.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrWrongTokenType indicates a token of the wrong kind was presented.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrForbidden indicates the caller lacks a required role.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrRateLimitExceeded indicates the actor exhausted its window quota.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInactiveAccount indicates the subject's account is disabled.
	ErrInactiveAccount = errors.New("account is not active")
)
