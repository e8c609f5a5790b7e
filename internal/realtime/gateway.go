// Package realtime is the WebSocket layer: connection lifecycle, the
// conversation router, and the translation between wire events and the
// presence registry and message relay. It is the only package that sees
// event-name strings on the inbound side.
package realtime

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/chat"
	"github.com/aura-events/backend/internal/presence"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// TokenValidator verifies a bearer credential and yields the identity it
// carries. Issuance is external; the gateway only consumes verified claims.
type TokenValidator func(token string) (userID uuid.UUID, role string, err error)

// Gateway wires connections into the presence registry, the conversation
// router, and the message relay. The authenticated identity is passed
// explicitly into every relay call; nothing reads it from ambient state.
type Gateway struct {
	registry *presence.Registry
	router   *Router
	relay    *chat.Relay
	logger   *zap.Logger
}

// statusChangedPayload announces a presence transition.
type statusChangedPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Online bool      `json:"online"`
}

// NewGateway creates the gateway and hooks presence transitions to a local
// user_status_changed broadcast.
func NewGateway(registry *presence.Registry, router *Router, relay *chat.Relay, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{registry: registry, router: router, relay: relay, logger: logger}
	registry.SetChangeHandler(func(userID uuid.UUID, online bool) {
		registry.Broadcast(EventUserStatusChanged, statusChangedPayload{UserID: userID, Online: online})
	})
	return g
}

// ServeWs handles the WebSocket upgrade. A missing or invalid credential
// rejects the connection before any event is accepted.
func (g *Gateway) ServeWs(validate TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		userID, role, err := validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			g.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			id:     uuid.New().String(),
			userID: userID,
			role:   role,
			gw:     g,
			conn:   conn,
			send:   make(chan WSMessage, sendBuffer),
			joined: make(map[uuid.UUID]struct{}),
			logger: g.logger,
		}
		g.registry.Register(client)
		go client.writePump()
		client.readPump()
	}
}

// dispatch routes one decoded inbound event. Each case is a single
// synchronous turn; relay failures answer the sender with message_error and
// never tear down the connection.
func (g *Gateway) dispatch(c *Client, ev inboundEvent) {
	ctx := context.Background()
	switch ev := ev.(type) {
	case joinConversationEvent:
		g.router.Join(c, ev.ConversationID)
		c.markJoined(ev.ConversationID)
		c.Send(EventJoinedConversation, map[string]uuid.UUID{"conversation_id": ev.ConversationID})

	case leaveConversationEvent:
		g.router.Leave(c, ev.ConversationID)
		c.markLeft(ev.ConversationID)

	case sendMessageEvent:
		msg, err := g.relay.Send(ctx, c.userID, ev.ConversationID, ev.Content)
		if err != nil {
			g.sendError(c, err)
			return
		}
		c.Send(EventMessageSent, map[string]uuid.UUID{
			"message_id":      msg.ID,
			"conversation_id": msg.ConversationID,
		})

	case typingStartEvent:
		g.relay.TypingStart(ev.ConversationID, c.userID)

	case typingStopEvent:
		g.relay.TypingStop(ev.ConversationID, c.userID)

	case markAsReadEvent:
		if _, err := g.relay.MarkRead(ctx, ev.ConversationID, c.userID); err != nil {
			g.sendError(c, err)
		}

	case checkOnlineStatusEvent:
		c.Send(EventOnlineStatus, g.registry.QueryStatuses(ev.UserIDs))
	}
}

func (g *Gateway) sendError(c *Client, err error) {
	c.Send(EventMessageError, map[string]string{"error": err.Error()})
}

// disconnect runs the shared teardown for explicit closes and pong timeouts:
// leave every joined group, then drop the presence handle.
func (g *Gateway) disconnect(c *Client) {
	g.router.LeaveAll(c)
	g.registry.Unregister(c)
}
