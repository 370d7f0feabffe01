package domain

import "time"

// ConnectionState models the lifecycle of a registered real-time client
// connection. Earlier handshake phases (socket open, token validation)
// happen before a connection is registered and leave no registry entry,
// so they carry no state here.
type ConnectionState string

const (
	ConnectionSubscribed ConnectionState = "subscribed"
	ConnectionActive     ConnectionState = "active"
	ConnectionClosing    ConnectionState = "closing"
	ConnectionClosed     ConnectionState = "closed"
)

// ConnectionInfo is the registry's view of one live connection.
type ConnectionInfo struct {
	ConnectionID       string
	Subject            string
	Roles              []string
	State              ConnectionState
	ConnectedAt        time.Time
	LastActivity       time.Time
	SubscribedChannels []string
}
