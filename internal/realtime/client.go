package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	maxFrameSize = 65536
	sendBuffer   = 256
)

// Client is one live WebSocket connection. It satisfies both the presence
// registry's and the router's Conn interfaces.
type Client struct {
	id     string
	userID uuid.UUID
	role   string
	gw     *Gateway
	conn   *websocket.Conn
	send   chan WSMessage
	logger *zap.Logger

	mu     sync.Mutex
	joined map[uuid.UUID]struct{} // conversations joined, for disconnect cleanup
}

// ID returns the connection id, unique per connection, not per user.
func (c *Client) ID() string { return c.id }

// UserID returns the authenticated owner of this connection.
func (c *Client) UserID() uuid.UUID { return c.userID }

// Send queues an event for this connection without blocking. A full buffer
// drops the event and reports false; one slow tab never stalls the caller.
func (c *Client) Send(event string, payload interface{}) bool {
	var data json.RawMessage
	switch v := payload.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			c.logger.Warn("marshal outbound event failed", zap.Error(err), zap.String("event", event))
			return false
		}
		data = b
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
		return true
	default:
		return false
	}
}

func (c *Client) markJoined(conversationID uuid.UUID) {
	c.mu.Lock()
	c.joined[conversationID] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) markLeft(conversationID uuid.UUID) {
	c.mu.Lock()
	delete(c.joined, conversationID)
	c.mu.Unlock()
}

// readPump consumes inbound frames until the connection dies, either by an
// explicit close or by missing pongs. Both paths run the same cleanup.
func (c *Client) readPump() {
	defer func() {
		c.gw.disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, err := decodeInbound(msg)
		if err != nil {
			// Malformed payloads answer with an error event and keep the
			// connection alive.
			c.Send(EventMessageError, map[string]string{"error": err.Error()})
			continue
		}
		c.gw.dispatch(c, ev)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
