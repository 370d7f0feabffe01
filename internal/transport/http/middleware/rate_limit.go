package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Ajirohack/API/internal/core/port"
	"github.com/Ajirohack/API/internal/infra/config"
)

// RateLimiter enforces per-role fixed-window request quotas backed by a
// shared counter store, so every instance behind a load balancer draws from
// the same budget.
//
// A store outage fails open: the request proceeds and the outage is logged.
// Availability wins over strict quota enforcement here.
type RateLimiter struct {
	store  port.RateLimitStore
	cfg    config.RateLimitSettings
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store port.RateLimitStore, cfg config.RateLimitSettings, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// Window returns the configured window duration, defaulting to one minute.
func (rl *RateLimiter) Window() time.Duration {
	if rl.cfg.WindowDuration > 0 {
		return rl.cfg.WindowDuration
	}
	return time.Minute
}

// Check consumes one request from the actor's current window. It returns the
// resolved limit, the remaining budget after this request, and whether the
// request is allowed. The same admission path serves HTTP middleware and the
// WebSocket handshake.
func (rl *RateLimiter) Check(ctx context.Context, role, actor string) (limit, remaining int, allowed bool) {
	limit = rl.cfg.LimitForRole(role)
	window := rl.Window()
	windowIndex := rl.now().Unix() / int64(window.Seconds())
	key := fmt.Sprintf("%s:%s:%d", role, actor, windowIndex)

	count, err := rl.store.IncrementWindow(ctx, key, window)
	if err != nil {
		rl.logger.Warn("rate limit store unavailable, failing open",
			zap.String("role", role),
			zap.String("actor", actor),
			zap.Error(err),
		)
		return limit, limit, true
	}

	remaining = limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return limit, remaining, count <= int64(limit)
}

// Handler returns a Gin middleware applying the role-scoped quota. It must
// run after RequireAuth on authenticated routes; anonymous requests are
// bucketed as guests keyed by client IP.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.store == nil {
			c.Next()
			return
		}

		role, actor := rl.identity(c)

		limit, remaining, allowed := rl.Check(c.Request.Context(), role, actor)

		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			retryAfter := int(math.Ceil(rl.Window().Seconds()))
			headers.Set("Retry-After", strconv.Itoa(retryAfter))

			rl.logger.Info("rate limit exceeded",
				zap.String("role", role),
				zap.String("actor", actor),
				zap.Int("limit", limit),
			)

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"limit":       limit,
				"retry_after": retryAfter,
				"trace_id":    GetTraceID(c),
			})
			return
		}

		c.Next()
	}
}

// identity resolves the quota bucket for the request. The highest-privileged
// role on the claims wins so admins are never throttled down to user quotas.
func (rl *RateLimiter) identity(c *gin.Context) (role, actor string) {
	userID, authenticated := GetAuthenticatedUserID(c)
	if !authenticated {
		return "guest", c.ClientIP()
	}

	roles := GetAuthenticatedRoles(c)
	return rl.BestRole(roles), userID
}

// BestRole picks the role with the largest quota from the supplied set,
// falling back to "user" when none are recognized.
func (rl *RateLimiter) BestRole(roles []string) string {
	best := ""
	bestLimit := -1
	for _, role := range roles {
		if limit := rl.cfg.LimitForRole(role); limit > bestLimit {
			best = role
			bestLimit = limit
		}
	}
	if best == "" {
		return "user"
	}
	return best
}
