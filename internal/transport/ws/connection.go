package ws

import (
	"sync"
	"time"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/repository"
)

// ConnectionRegistry tracks live WebSocket connections. Alongside the primary
// map it maintains a subject index, so "all connections for user X" resolves
// without scanning every entry.
type ConnectionRegistry struct {
	mu        sync.RWMutex
	conns     map[string]*domain.ConnectionInfo
	bySubject map[string]map[string]struct{}
	now       func() time.Time
}

// NewConnectionRegistry constructs an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns:     make(map[string]*domain.ConnectionInfo),
		bySubject: make(map[string]map[string]struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the registry clock for deterministic tests.
func (r *ConnectionRegistry) WithClock(clock func() time.Time) *ConnectionRegistry {
	if clock != nil {
		r.now = clock
	}
	return r
}

// Add records a new connection and indexes it by subject.
func (r *ConnectionRegistry) Add(info domain.ConnectionInfo) {
	now := r.now()
	if info.ConnectedAt.IsZero() {
		info.ConnectedAt = now
	}
	if info.LastActivity.IsZero() {
		info.LastActivity = now
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[info.ConnectionID] = &info
	if r.bySubject[info.Subject] == nil {
		r.bySubject[info.Subject] = make(map[string]struct{})
	}
	r.bySubject[info.Subject][info.ConnectionID] = struct{}{}
}

// Remove drops the connection and cleans the subject index. Removing an
// unknown id is a no-op.
func (r *ConnectionRegistry) Remove(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.conns[connectionID]
	if !ok {
		return
	}

	delete(r.conns, connectionID)
	if ids, ok := r.bySubject[info.Subject]; ok {
		delete(ids, connectionID)
		if len(ids) == 0 {
			delete(r.bySubject, info.Subject)
		}
	}
}

// Get returns a snapshot of the connection, or repository.ErrNotFound.
func (r *ConnectionRegistry) Get(connectionID string) (domain.ConnectionInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.conns[connectionID]
	if !ok {
		return domain.ConnectionInfo{}, repository.ErrNotFound
	}
	return cloneConnection(info), nil
}

// BySubject returns snapshots of every live connection for the subject.
func (r *ConnectionRegistry) BySubject(subject string) []domain.ConnectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.bySubject[subject]
	if !ok {
		return nil
	}

	out := make([]domain.ConnectionInfo, 0, len(ids))
	for id := range ids {
		if info, ok := r.conns[id]; ok {
			out = append(out, cloneConnection(info))
		}
	}
	return out
}

// Touch refreshes the connection's last-activity stamp.
func (r *ConnectionRegistry) Touch(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.conns[connectionID]; ok {
		info.LastActivity = r.now()
	}
}

// SetState transitions the connection's lifecycle state.
func (r *ConnectionRegistry) SetState(connectionID string, state domain.ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.conns[connectionID]; ok {
		info.State = state
	}
}

// AddChannel records an extra subscribed channel on the connection.
func (r *ConnectionRegistry) AddChannel(connectionID, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.conns[connectionID]
	if !ok {
		return
	}
	for _, existing := range info.SubscribedChannels {
		if existing == channel {
			return
		}
	}
	info.SubscribedChannels = append(info.SubscribedChannels, channel)
}

// Count returns the number of live connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func cloneConnection(info *domain.ConnectionInfo) domain.ConnectionInfo {
	out := *info
	out.Roles = append([]string(nil), info.Roles...)
	out.SubscribedChannels = append([]string(nil), info.SubscribedChannels...)
	return out
}
