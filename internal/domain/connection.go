package domain

import (
	"time"
)

type (
	ConnectionState string

	// EndpointConnection is the supervisor's record of one monitored
	// computer. Exactly one exists per distinct endpoint identity; a second
	// connect request for the same identity reuses the existing record.
	// Only the supervisor mutates it.
	EndpointConnection struct {
		ID          string
		Endpoint    string
		DisplayName string

		State           ConnectionState
		LastError       string
		LastRefreshedAt time.Time

		Queues []QueueDescriptor

		RefreshInterval    time.Duration
		AutoRefreshEnabled bool

		RetryCount int
	}
)

const (
	StateNotConnected ConnectionState = "not_connected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateFailed       ConnectionState = "failed"
)

// CanTransition validates a connection state change against the lifecycle:
// NotConnected -> Connecting -> Connected; Connected -> Failed;
// Failed|Disconnected -> Connecting; Connecting -> Failed on timeout. An
// explicit disconnect is allowed from any live state. No state is terminal;
// removal from the registry ends the lifecycle.
func (s ConnectionState) CanTransition(to ConnectionState) bool {
	if to == StateDisconnected {
		return s != StateDisconnected
	}

	switch s {
	case StateNotConnected:
		return to == StateConnecting
	case StateConnecting:
		return to == StateConnected || to == StateFailed
	case StateConnected:
		return to == StateFailed || to == StateConnecting
	case StateDisconnected, StateFailed:
		return to == StateConnecting
	default:
		return false
	}
}

// IsConnected reports whether the connection is in the healthy steady state.
func (c *EndpointConnection) IsConnected() bool {
	return c.State == StateConnected
}

// QueueByPath finds a cached descriptor by queue path. The boolean result is
// false when the queue is not part of the current cache.
func (c *EndpointConnection) QueueByPath(path string) (QueueDescriptor, bool) {
	for _, q := range c.Queues {
		if q.Path == path {
			return q, true
		}
	}

	return QueueDescriptor{}, false
}

// SavedConnection is the persisted form of a connection: endpoint identity
// and display metadata only. Credentials are never persisted.
type SavedConnection struct {
	Endpoint           string        `db:"endpoint" json:"endpoint"`
	DisplayName        string        `db:"display_name" json:"display_name"`
	RefreshInterval    time.Duration `db:"refresh_interval" json:"refresh_interval"`
	AutoRefreshEnabled bool          `db:"auto_refresh_enabled" json:"auto_refresh_enabled"`
}
