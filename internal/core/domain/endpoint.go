package domain

import "time"

// EndpointStatus enumerates the health states a logical API endpoint can report.
type EndpointStatus string

const (
	EndpointHealthy     EndpointStatus = "healthy"
	EndpointDegraded    EndpointStatus = "degraded"
	EndpointDown        EndpointStatus = "down"
	EndpointUnknown     EndpointStatus = "unknown"
	EndpointStarting    EndpointStatus = "starting"
	EndpointMaintenance EndpointStatus = "maintenance"
	EndpointPlanned     EndpointStatus = "planned"
)

// AllEndpointStatuses lists every known status in a stable order.
// Summaries report all of them, including zero counts.
func AllEndpointStatuses() []EndpointStatus {
	return []EndpointStatus{
		EndpointHealthy,
		EndpointDegraded,
		EndpointDown,
		EndpointUnknown,
		EndpointStarting,
		EndpointMaintenance,
		EndpointPlanned,
	}
}

// Valid reports whether the status is one of the known values.
func (s EndpointStatus) Valid() bool {
	for _, known := range AllEndpointStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// StatusTransition records a single endpoint status change.
type StatusTransition struct {
	Previous  EndpointStatus `json:"previous_status"`
	New       EndpointStatus `json:"new_status"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EndpointInfo describes a logical API endpoint and its health state.
type EndpointInfo struct {
	EndpointID  string             `json:"endpoint_id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Category    string             `json:"category"`
	Status      EndpointStatus     `json:"status"`
	LastChecked time.Time          `json:"last_checked"`
	Metadata    map[string]any     `json:"metadata"`
	History     []StatusTransition `json:"-"`
}
