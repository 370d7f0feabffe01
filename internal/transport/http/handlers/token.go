package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ajirohack/API/internal/repository"
	"github.com/Ajirohack/API/internal/usecase"
)

// TokenHandler exposes endpoints for token issuance, refresh, and revocation.
type TokenHandler struct {
	tokens *usecase.TokenService
}

func NewTokenHandler(tokens *usecase.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// RegisterRoutes binds token endpoints.
func (h *TokenHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/token", h.IssueToken)
	r.POST("/token/refresh", h.RefreshToken)
	r.POST("/token/revoke", h.RevokeToken)
}

// IssueToken mints an access/refresh pair for a known subject. Unknown and
// inactive subjects both map to 401 so the endpoint does not confirm which
// accounts exist.
func (h *TokenHandler) IssueToken(c *gin.Context) {
	var req TokenIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user_id is required"))
		return
	}

	pair, err := h.tokens.IssuePairForUser(c.Request.Context(), req.UserID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusUnauthorized, Message: "invalid credentials"},
			{Err: usecase.ErrInactiveAccount, Status: http.StatusUnauthorized, Message: "invalid credentials"},
		}, http.StatusInternalServerError, "token issuance failed")
		return
	}

	c.JSON(http.StatusOK, NewTokenPairResponse(pair, time.Now().UTC()))
}

// RefreshToken exchanges a valid refresh token for a new pair. The presented
// refresh token is consumed by the rotation.
func (h *TokenHandler) RefreshToken(c *gin.Context) {
	var req TokenRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh_token is required"))
		return
	}

	pair, err := h.tokens.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrWrongTokenType, Status: http.StatusBadRequest, Message: "refresh token required"},
			{Err: usecase.ErrTokenExpired, Status: http.StatusUnauthorized, Message: "invalid or expired token"},
			{Err: usecase.ErrTokenRevoked, Status: http.StatusUnauthorized, Message: "invalid or expired token"},
			{Err: usecase.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid or expired token"},
		}, http.StatusInternalServerError, "token refresh failed")
		return
	}

	c.JSON(http.StatusOK, NewTokenPairResponse(pair, time.Now().UTC()))
}

// RevokeToken invalidates the supplied token immediately. Revoking an
// already-revoked token succeeds.
func (h *TokenHandler) RevokeToken(c *gin.Context) {
	var req TokenRevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token is required"))
		return
	}

	if err := h.tokens.Revoke(c.Request.Context(), req.Token, req.Reason); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid token"},
		}, http.StatusInternalServerError, "token revocation failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "token revoked"})
}
