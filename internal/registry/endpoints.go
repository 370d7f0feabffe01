package registry

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/repository"
)

const maxHistorySize = 100

// EndpointRegistry is a lock-protected catalog of logical API endpoints and
// their health transitions. The application's composition root constructs
// one instance and hands it to every consumer; there is no package-level
// singleton, so tests get isolated registries for free.
type EndpointRegistry struct {
	mu        sync.RWMutex
	endpoints map[string]*domain.EndpointInfo
	logger    *zap.Logger
	now       func() time.Time
}

// NewEndpointRegistry constructs an empty registry.
func NewEndpointRegistry(log *zap.Logger) *EndpointRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &EndpointRegistry{
		endpoints: make(map[string]*domain.EndpointInfo),
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the registry clock for deterministic tests.
func (r *EndpointRegistry) WithClock(clock func() time.Time) *EndpointRegistry {
	if clock != nil {
		r.now = clock
	}
	return r
}

// RegisterParams configures endpoint registration.
type RegisterParams struct {
	EndpointID  string
	Name        string
	Description string
	Category    string
	Status      domain.EndpointStatus
	Metadata    map[string]any
}

// Register creates the endpoint if absent. Re-registering merges the
// supplied fields into the existing entry instead of erroring: name,
// description, and category overwrite when non-empty, metadata is merged
// key-wise, and the current status and history are left alone.
func (r *EndpointRegistry) Register(params RegisterParams) (domain.EndpointInfo, error) {
	if params.EndpointID == "" {
		return domain.EndpointInfo{}, fmt.Errorf("endpoint id is required")
	}
	if params.Name == "" {
		return domain.EndpointInfo{}, fmt.Errorf("endpoint name is required")
	}

	status := params.Status
	if status == "" {
		status = domain.EndpointStarting
	}
	if !status.Valid() {
		return domain.EndpointInfo{}, fmt.Errorf("unknown endpoint status %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.endpoints[params.EndpointID]; ok {
		existing.Name = params.Name
		if params.Description != "" {
			existing.Description = params.Description
		}
		if params.Category != "" {
			existing.Category = params.Category
		}
		for k, v := range params.Metadata {
			existing.Metadata[k] = v
		}
		r.logger.Warn("endpoint already registered, merging info", zap.String("endpoint_id", params.EndpointID))
		return cloneEndpoint(existing), nil
	}

	description := params.Description
	if description == "" {
		description = fmt.Sprintf("Endpoint %s", params.Name)
	}
	category := params.Category
	if category == "" {
		category = "uncategorized"
	}
	metadata := make(map[string]any, len(params.Metadata))
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	entry := &domain.EndpointInfo{
		EndpointID:  params.EndpointID,
		Name:        params.Name,
		Description: description,
		Category:    category,
		Status:      status,
		LastChecked: r.now(),
		Metadata:    metadata,
	}
	r.endpoints[params.EndpointID] = entry

	r.logger.Info("registered endpoint",
		zap.String("endpoint_id", params.EndpointID),
		zap.String("name", params.Name),
		zap.String("status", string(status)),
	)

	return cloneEndpoint(entry), nil
}

// UpdateStatus transitions the endpoint to a new status. An unchanged
// status only refreshes the last-checked stamp; a real transition appends a
// history record snapshotting the pre-transition metadata, with the oldest
// record evicted past the cap. Fails with repository.ErrNotFound for
// unregistered ids.
func (r *EndpointRegistry) UpdateStatus(endpointID string, status domain.EndpointStatus, metadata map[string]any) error {
	if !status.Valid() {
		return fmt.Errorf("unknown endpoint status %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.endpoints[endpointID]
	if !ok {
		return repository.ErrNotFound
	}

	now := r.now()
	if status == entry.Status {
		entry.LastChecked = now
		return nil
	}

	snapshot := make(map[string]any, len(entry.Metadata))
	for k, v := range entry.Metadata {
		snapshot[k] = v
	}

	entry.History = append(entry.History, domain.StatusTransition{
		Previous:  entry.Status,
		New:       status,
		Timestamp: now,
		Metadata:  snapshot,
	})
	if len(entry.History) > maxHistorySize {
		entry.History = entry.History[len(entry.History)-maxHistorySize:]
	}

	entry.Status = status
	entry.LastChecked = now
	for k, v := range metadata {
		entry.Metadata[k] = v
	}

	r.logger.Info("endpoint status changed",
		zap.String("endpoint_id", endpointID),
		zap.String("status", string(status)),
	)

	return nil
}

// Get returns the endpoint entry, or repository.ErrNotFound.
func (r *EndpointRegistry) Get(endpointID string) (domain.EndpointInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.endpoints[endpointID]
	if !ok {
		return domain.EndpointInfo{}, repository.ErrNotFound
	}
	return cloneEndpoint(entry), nil
}

// List returns every registered endpoint.
func (r *EndpointRegistry) List() []domain.EndpointInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.EndpointInfo, 0, len(r.endpoints))
	for _, entry := range r.endpoints {
		out = append(out, cloneEndpoint(entry))
	}
	return out
}

// ListByStatus returns endpoints whose status matches any of the supplied values.
func (r *EndpointRegistry) ListByStatus(statuses ...domain.EndpointStatus) []domain.EndpointInfo {
	wanted := make(map[domain.EndpointStatus]struct{}, len(statuses))
	for _, s := range statuses {
		wanted[s] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.EndpointInfo
	for _, entry := range r.endpoints {
		if _, ok := wanted[entry.Status]; ok {
			out = append(out, cloneEndpoint(entry))
		}
	}
	return out
}

// ListByCategory returns endpoints in the supplied category.
func (r *EndpointRegistry) ListByCategory(category string) []domain.EndpointInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.EndpointInfo
	for _, entry := range r.endpoints {
		if entry.Category == category {
			out = append(out, cloneEndpoint(entry))
		}
	}
	return out
}

// Summary reports a count per status. Every known status appears, including
// those with zero endpoints.
func (r *EndpointRegistry) Summary() map[domain.EndpointStatus]int {
	summary := make(map[domain.EndpointStatus]int, len(domain.AllEndpointStatuses()))
	for _, status := range domain.AllEndpointStatuses() {
		summary[status] = 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.endpoints {
		summary[entry.Status]++
	}
	return summary
}

func cloneEndpoint(entry *domain.EndpointInfo) domain.EndpointInfo {
	out := *entry
	out.Metadata = make(map[string]any, len(entry.Metadata))
	for k, v := range entry.Metadata {
		out.Metadata[k] = v
	}
	out.History = make([]domain.StatusTransition, len(entry.History))
	copy(out.History, entry.History)
	return out
}
