package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ajirohack/API/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// TokenIssueRequest defines the payload for the token issuance endpoint.
type TokenIssueRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// TokenRefreshRequest represents the payload to refresh an access token.
type TokenRefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenRevokeRequest represents the payload to revoke a token.
type TokenRevokeRequest struct {
	Token  string `json:"token" binding:"required"`
	Reason string `json:"reason"`
}

// TokenPairResponse describes an issued access/refresh token pair.
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// NewTokenPairResponse converts a domain token pair into the API shape.
func NewTokenPairResponse(pair domain.TokenPair, now time.Time) TokenPairResponse {
	expiresIn := int(pair.ExpiresAt.Sub(now).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	return TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    expiresIn,
	}
}

// EndpointRegisterRequest defines the payload to register a logical endpoint.
type EndpointRegisterRequest struct {
	EndpointID  string         `json:"endpoint_id" binding:"required"`
	Name        string         `json:"name" binding:"required"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Status      string         `json:"status"`
	Metadata    map[string]any `json:"metadata"`
}

// EndpointStatusUpdateRequest defines the payload to transition endpoint health.
type EndpointStatusUpdateRequest struct {
	Status   string         `json:"status" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

// StatusTransitionView is a single health transition in an endpoint's history.
type StatusTransitionView struct {
	Previous  string         `json:"previous"`
	New       string         `json:"new"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EndpointView describes a registered endpoint in API responses.
type EndpointView struct {
	EndpointID  string                 `json:"endpoint_id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	Status      string                 `json:"status"`
	LastChecked time.Time              `json:"last_checked"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
	History     []StatusTransitionView `json:"history,omitempty"`
}

// NewEndpointView converts a domain endpoint to the API shape. History is
// only rendered when includeHistory is set; list responses stay compact.
func NewEndpointView(info domain.EndpointInfo, includeHistory bool) EndpointView {
	view := EndpointView{
		EndpointID:  info.EndpointID,
		Name:        info.Name,
		Description: info.Description,
		Category:    info.Category,
		Status:      string(info.Status),
		LastChecked: info.LastChecked,
		Metadata:    info.Metadata,
	}

	if includeHistory {
		view.History = make([]StatusTransitionView, 0, len(info.History))
		for _, transition := range info.History {
			view.History = append(view.History, StatusTransitionView{
				Previous:  string(transition.Previous),
				New:       string(transition.New),
				Timestamp: transition.Timestamp,
				Metadata:  transition.Metadata,
			})
		}
	}

	return view
}

// EndpointListResponse wraps a collection of endpoints.
type EndpointListResponse struct {
	Endpoints []EndpointView `json:"endpoints"`
	Total     int            `json:"total"`
}

// EndpointSummaryResponse reports endpoint counts per status.
type EndpointSummaryResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// HealthResponse reports process liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports per-dependency readiness.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
