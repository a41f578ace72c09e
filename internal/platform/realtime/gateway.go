package realtime

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/auth"
)

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// EventSink receives client-originated channel events from the gateway. It
// is implemented by the chat service and wired in main.
type EventSink interface {
	// MessagesSeen handles a batch seen acknowledgement from a viewer.
	MessagesSeen(ctx context.Context, viewerID, viewerRole, counterpartID string, messageIDs []uuid.UUID) error
	// Typing forwards a fire-and-forget typing signal.
	Typing(fromID, counterpartID string)
}

// inbound is the shape of every client->server channel message.
type inbound struct {
	Type          string      `json:"type"`
	CounterpartID string      `json:"counterpart_id,omitempty"`
	MessageIDs    []uuid.UUID `json:"message_ids,omitempty"`
}

// Gateway upgrades authenticated HTTP requests to WebSocket connections and
// routes channel events between clients, the presence registry, and the
// event sink.
type Gateway struct {
	registry   *Registry
	sink       EventSink
	logger     zerolog.Logger
	sendBuffer int
}

func NewGateway(registry *Registry, sink EventSink, logger zerolog.Logger, sendBuffer int) *Gateway {
	return &Gateway{
		registry:   registry,
		sink:       sink,
		logger:     logger,
		sendBuffer: sendBuffer,
	}
}

// RegisterRoutes registers the WebSocket endpoint on the provided group. The
// group's auth middleware must have populated the request context with the
// caller's identity before the upgrade.
func (g *Gateway) RegisterRoutes(grp *echo.Group) {
	grp.GET("/ws", g.HandleConnect)
}

// HandleConnect upgrades the connection, registers the caller as online, and
// starts the read/write pumps. Registration itself is the presence
// announcement; the explicit presence-announce event is an idempotent
// re-sync.
func (g *Gateway) HandleConnect(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserIDFromContext(ctx)
	role := auth.RoleFromContext(ctx)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing identity")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(userID, role, &gorillaConnAdapter{ws}, g.sendBuffer)
	g.registry.Register(client)

	go g.writePump(client)
	go g.readPump(client)

	return nil
}

// readPump reads channel events from the connection until it drops, then
// unregisters the client. In-flight operations already handed to the sink
// complete against the record store regardless.
func (g *Gateway) readPump(client *Client) {
	defer func() {
		g.registry.Unregister(client)
		client.conn.Close()
	}()

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue // Ignore malformed messages.
		}
		g.dispatch(client, msg)
	}
}

func (g *Gateway) dispatch(client *Client, msg inbound) {
	switch msg.Type {
	case EventPresenceAnnounce:
		// Already registered at connect time; re-announcing just re-syncs
		// this client's view of who is online.
		g.registry.SendOnline(client)
	case EventMessageSeen:
		if err := g.sink.MessagesSeen(context.Background(), client.UserID, client.Role, msg.CounterpartID, msg.MessageIDs); err != nil {
			g.logger.Error().Err(err).
				Str("user_id", client.UserID).
				Str("counterpart_id", msg.CounterpartID).
				Msg("seen acknowledgement failed")
		}
	case EventTyping:
		g.sink.Typing(client.UserID, msg.CounterpartID)
	}
}

// writePump drains the client's send queue onto the connection.
func (g *Gateway) writePump(client *Client) {
	defer client.conn.Close()

	for data := range client.send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, data); err != nil {
			return
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy Conn.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
