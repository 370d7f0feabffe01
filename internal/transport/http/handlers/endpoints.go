package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/registry"
	"github.com/Ajirohack/API/internal/repository"
)

// EndpointHandler exposes the endpoint-health registry over REST.
type EndpointHandler struct {
	registry *registry.EndpointRegistry
}

func NewEndpointHandler(reg *registry.EndpointRegistry) *EndpointHandler {
	return &EndpointHandler{registry: reg}
}

// RegisterRoutes binds read endpoints on r and mutating endpoints on admin.
func (h *EndpointHandler) RegisterRoutes(r *gin.RouterGroup, admin *gin.RouterGroup) {
	r.GET("/endpoints", h.List)
	r.GET("/endpoints/summary", h.Summary)
	r.GET("/endpoints/:id", h.Get)

	admin.POST("/endpoints", h.Register)
	admin.PUT("/endpoints/:id/status", h.UpdateStatus)
}

// List returns registered endpoints, optionally filtered by status or
// category query parameters.
func (h *EndpointHandler) List(c *gin.Context) {
	var entries []domain.EndpointInfo

	switch {
	case c.Query("status") != "":
		status := domain.EndpointStatus(c.Query("status"))
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown status filter"))
			return
		}
		entries = h.registry.ListByStatus(status)
	case c.Query("category") != "":
		entries = h.registry.ListByCategory(c.Query("category"))
	default:
		entries = h.registry.List()
	}

	views := make([]EndpointView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, NewEndpointView(entry, false))
	}

	c.JSON(http.StatusOK, EndpointListResponse{Endpoints: views, Total: len(views)})
}

// Summary reports endpoint counts per status.
func (h *EndpointHandler) Summary(c *gin.Context) {
	summary := h.registry.Summary()

	byStatus := make(map[string]int, len(summary))
	total := 0
	for status, count := range summary {
		byStatus[string(status)] = count
		total += count
	}

	c.JSON(http.StatusOK, EndpointSummaryResponse{Total: total, ByStatus: byStatus})
}

// Get returns a single endpoint including its transition history.
func (h *EndpointHandler) Get(c *gin.Context) {
	entry, err := h.registry.Get(c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "endpoint not found"},
		}, http.StatusInternalServerError, "endpoint lookup failed")
		return
	}

	c.JSON(http.StatusOK, NewEndpointView(entry, true))
}

// Register creates or merges an endpoint entry.
func (h *EndpointHandler) Register(c *gin.Context) {
	var req EndpointRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "endpoint_id and name are required"))
		return
	}

	entry, err := h.registry.Register(registry.RegisterParams{
		EndpointID:  req.EndpointID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Status:      domain.EndpointStatus(req.Status),
		Metadata:    req.Metadata,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, NewEndpointView(entry, false))
}

// UpdateStatus transitions an endpoint's health status.
func (h *EndpointHandler) UpdateStatus(c *gin.Context) {
	var req EndpointStatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "status is required"))
		return
	}

	status := domain.EndpointStatus(req.Status)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown endpoint status"))
		return
	}

	if err := h.registry.UpdateStatus(c.Param("id"), status, req.Metadata); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "endpoint not found"},
		}, http.StatusInternalServerError, "status update failed")
		return
	}

	entry, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "status update failed"))
		return
	}

	c.JSON(http.StatusOK, NewEndpointView(entry, false))
}
