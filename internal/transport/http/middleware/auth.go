package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/infra/logger"
	"github.com/Ajirohack/API/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireAuth validates the Authorization header and stores the decoded
// claims on the context. Rejection bodies stay generic; the precise failure
// class is only logged, so callers cannot probe revocation state.
func RequireAuth(tokens *usecase.TokenService, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing access token"))
			return
		}

		claims, err := tokens.Decode(c.Request.Context(), token, true)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrTokenExpired),
				errors.Is(err, usecase.ErrTokenRevoked),
				errors.Is(err, usecase.ErrInvalidToken):
				log.Info("rejected bearer token",
					zap.String("token", logger.MaskToken(token)),
					zap.Error(err),
				)
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid or expired token"))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authentication failed"))
			}
			return
		}

		if claims.Type != domain.TokenTypeAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid or expired token"))
			return
		}

		c.Set(UserIDKey, claims.Subject)
		c.Set(ClaimsKey, claims)
		c.Set(RolesKey, claims.Roles)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UserID = claims.Subject
		}

		c.Next()
	}
}

// RequireRole checks if the authenticated user has any of the specified roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rolesVal, exists := c.Get(RolesKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		userRoles, ok := rolesVal.([]string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "invalid roles format"))
			return
		}

		if !hasAnyRole(userRoles, roles) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

// hasAnyRole checks if the user has any of the required roles
func hasAnyRole(userRoles []string, requiredRoles []string) bool {
	roleMap := make(map[string]bool, len(userRoles))
	for _, role := range userRoles {
		roleMap[role] = true
	}

	for _, required := range requiredRoles {
		if roleMap[required] {
			return true
		}
	}
	return false
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok {
		return id, true
	}

	return "", false
}

// GetAuthenticatedRoles retrieves the role list from context.
func GetAuthenticatedRoles(c *gin.Context) []string {
	rolesVal, exists := c.Get(RolesKey)
	if !exists {
		return nil
	}
	if roles, ok := rolesVal.([]string); ok {
		return roles
	}
	return nil
}
