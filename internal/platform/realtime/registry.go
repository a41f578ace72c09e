package realtime

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one user's active connection. At most one Client per user is
// registered at a time; a reconnect replaces the previous one.
type Client struct {
	UserID string
	Role   string
	send   chan []byte
	conn   Conn

	mu     sync.Mutex
	closed bool
}

// NewClient builds a client around a connection with a buffered send queue.
func NewClient(userID, role string, conn Conn, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Client{
		UserID: userID,
		Role:   role,
		send:   make(chan []byte, sendBuffer),
		conn:   conn,
	}
}

// trySend queues data without blocking. A full buffer drops the push; the
// reader reconciles from the record store on its next fetch. Sends after
// closeSend are dropped rather than panicking on the closed channel.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Registry is the process-wide presence map. It is the single piece of
// shared mutable state touched by every connection handler, so every
// mutation is serialized behind the mutex. It holds no durable state: after
// a restart everyone is offline until they reconnect.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Client
	logger zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		byUser: make(map[string]*Client),
		logger: logger,
	}
}

// Register installs the client as the user's active connection, replacing
// and closing any prior one (last connection wins), then broadcasts the
// updated online set to every connection.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	if prev, ok := r.byUser[c.UserID]; ok && prev != c {
		prev.closeSend()
	}
	r.byUser[c.UserID] = c
	r.mu.Unlock()

	r.logger.Debug().Str("user_id", c.UserID).Str("role", c.Role).Msg("connection registered")
	r.BroadcastOnline()
}

// Unregister removes the entry only if it still maps to this exact client.
// A stale unregister arriving after the same user reconnected must not evict
// the newer registration.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	current, ok := r.byUser[c.UserID]
	if ok && current == c {
		delete(r.byUser, c.UserID)
	}
	r.mu.Unlock()

	c.closeSend()
	if ok && current == c {
		r.logger.Debug().Str("user_id", c.UserID).Msg("connection unregistered")
		r.BroadcastOnline()
	}
}

// Lookup returns the user's active connection, if any.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// IsOnline reports whether the user currently holds an active connection.
func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// OnlineUsers returns the sorted set of connected user IDs.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	users := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		users = append(users, id)
	}
	r.mu.RUnlock()

	sort.Strings(users)
	return users
}

// ClientCount returns the number of active connections.
func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Push marshals the event and queues it on the user's connection. It returns
// false when the user is offline or their send buffer is unavailable.
func (r *Registry) Push(userID string, event Event) bool {
	c, ok := r.Lookup(userID)
	if !ok {
		return false
	}
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error().Err(err).Str("event_type", event.Type).Msg("marshal event failed")
		return false
	}
	if !c.trySend(data) {
		r.logger.Warn().Str("user_id", userID).Str("event_type", event.Type).Msg("send buffer full, push dropped")
		return false
	}
	return true
}

// BroadcastOnline sends the current online-user set to every connection.
func (r *Registry) BroadcastOnline() {
	event := NewEvent(EventOnlineUsers, OnlineUsers{Users: r.OnlineUsers()})
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error().Err(err).Msg("marshal online-users failed")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byUser {
		c.trySend(data)
	}
}

// SendOnline sends the current online-user set to a single client, used to
// answer an explicit presence announcement.
func (r *Registry) SendOnline(c *Client) {
	event := NewEvent(EventOnlineUsers, OnlineUsers{Users: r.OnlineUsers()})
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	c.trySend(data)
}
