// Package sse implements Server-Sent Events so owners can watch their index
// sync happen live.
package sse

import (
	"time"

	"github.com/slatehq/slate-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventConnected is sent once when a client attaches.
	EventConnected EventType = "connected"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"

	// EventIndexSynced is sent after an index call succeeded.
	EventIndexSynced EventType = "index.synced"
	// EventIndexSyncFailed is sent after an index call failed and was
	// journaled. The index now diverges from the store until reconciled.
	EventIndexSyncFailed EventType = "index.sync_failed"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// OwnerID restricts delivery to that owner's clients. Empty means
	// broadcast to all.
	OwnerID string `json:"-"`
}

// IndexEventData is the payload of index events. Target is "files" or
// "collection".
type IndexEventData struct {
	Target string         `json:"target"`
	Op     domain.IndexOp `json:"op"`
	IDs    []string       `json:"ids"`
	Error  string         `json:"error,omitempty"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// ConnectedEventData is the data payload of the first event on a stream.
type ConnectedEventData struct {
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}

// NewIndexSyncedEvent creates an index.synced event for ownerID.
func NewIndexSyncedEvent(ownerID, target string, op domain.IndexOp, ids []string) Event {
	return Event{
		Type:      EventIndexSynced,
		Data:      IndexEventData{Target: target, Op: op, IDs: ids},
		Timestamp: time.Now(),
		OwnerID:   ownerID,
	}
}

// NewIndexSyncFailedEvent creates an index.sync_failed event for ownerID.
func NewIndexSyncFailedEvent(ownerID, target string, op domain.IndexOp, ids []string, err error) Event {
	data := IndexEventData{Target: target, Op: op, IDs: ids}
	if err != nil {
		data.Error = err.Error()
	}
	return Event{
		Type:      EventIndexSyncFailed,
		Data:      data,
		Timestamp: time.Now(),
		OwnerID:   ownerID,
	}
}
