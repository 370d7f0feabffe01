package domain

import "time"

// User is the minimal projection of a platform account the gateway needs.
// Account management itself lives in an external service.
type User struct {
	ID        string
	Username  string
	Roles     []string
	Active    bool
	CreatedAt time.Time
}
