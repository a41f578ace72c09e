// Package realtime carries the persistent bidirectional channel between the
// server and each signed-in user: a WebSocket gateway, a process-wide
// presence registry mapping user ID to the single active connection, and the
// event envelope exchanged over the wire.
package realtime

import "time"

// Server -> client event types.
const (
	EventOnlineUsers     = "online-users"
	EventMessageIncoming = "message-incoming"
	EventStatusUpdate    = "status-update"
	EventMessageDeleted  = "message-deleted"
	EventMessageRedacted = "message-redacted"
	EventTyping          = "typing"
)

// Client -> server event types.
const (
	EventPresenceAnnounce = "presence-announce"
	EventMessageSeen      = "message-seen"
)

// Event is the envelope for every server->client push. Data is marshaled
// together with the envelope at write time.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// NewEvent wraps a payload in an Event envelope stamped with the current
// time.
func NewEvent(typ string, payload interface{}) Event {
	return Event{Type: typ, Timestamp: time.Now().UTC(), Data: payload}
}

// OnlineUsers is the payload of an online-users event.
type OnlineUsers struct {
	Users []string `json:"users"`
}
