package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadinessCheck probes a single downstream dependency.
type ReadinessCheck func(ctx context.Context) error

// HealthHandler exposes liveness and readiness information.
type HealthHandler struct {
	startedAt time.Time
	checks    map[string]ReadinessCheck
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(checks map[string]ReadinessCheck) *HealthHandler {
	return &HealthHandler{
		startedAt: time.Now().UTC(),
		checks:    checks,
	}
}

// Status reports process liveness.
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		StartedAt: h.startedAt,
	})
}

// Readiness probes every registered dependency. Any failing check turns the
// response into a 503 with the failing dependencies named.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	ready := true

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			ready = false
			continue
		}
		results[name] = "ok"
	}

	status := http.StatusOK
	overall := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		overall = "not_ready"
	}

	c.JSON(status, ReadinessResponse{Status: overall, Checks: results})
}
