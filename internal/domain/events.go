package domain

import (
	"time"
)

type (
	EventKind string

	// SupervisorEvent is one discrete notification published by the
	// connection supervisor. Consumers read events from a channel; the
	// supervisor holds no reference back to any consumer.
	SupervisorEvent struct {
		Kind         EventKind       `json:"kind"`
		Timestamp    time.Time       `json:"timestamp"`
		ConnectionID string          `json:"connection_id"`
		Endpoint     string          `json:"endpoint"`
		State        ConnectionState `json:"state,omitempty"`
		PrevState    ConnectionState `json:"prev_state,omitempty"`

		// QueueCount is set on refresh completion events.
		QueueCount int `json:"queue_count,omitempty"`

		// Retrying and Attempt are set on failure events when the reconnect
		// policy will try again.
		Retrying bool   `json:"retrying,omitempty"`
		Attempt  int    `json:"attempt,omitempty"`
		Error    string `json:"error,omitempty"`
	}
)

const (
	EventStateChanged EventKind = "connection_state_changed"
	EventRefreshed    EventKind = "connection_refreshed"
	EventFailed       EventKind = "connection_failed"
)
