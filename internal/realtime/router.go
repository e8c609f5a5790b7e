package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Conn is one live connection from the router's point of view. Send must not
// block; a slow or dead connection never holds up delivery to the rest of a
// group.
type Conn interface {
	ID() string
	Send(event string, payload interface{}) bool
}

// Publisher publishes conversation events to Redis for cross-instance
// delivery.
type Publisher interface {
	PublishConversationEvent(conversationID uuid.UUID, event string, payload []byte) error
}

// Subscriber subscribes to a conversation's Redis channel and invokes handler
// for incoming events.
type Subscriber interface {
	SubscribeConversation(conversationID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Router maintains conversationID -> set of subscribed connections. Groups
// are created lazily on first join and discarded when the last member leaves.
// The map is process-local; the Redis bridge carries events between
// instances, and each instance's subscription callback performs the single
// local broadcast (so a publishing instance never double-delivers).
type Router struct {
	mu     sync.RWMutex
	groups map[uuid.UUID]map[string]Conn
	subs   map[uuid.UUID]func() // cancel Redis subscription per conversation
	pub    Publisher
	sub    Subscriber
	logger *zap.Logger
}

// NewRouter creates a conversation router. pub and sub may be nil, in which
// case fan-out stays local to this process.
func NewRouter(logger *zap.Logger, pub Publisher, sub Subscriber) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		groups: make(map[uuid.UUID]map[string]Conn),
		subs:   make(map[uuid.UUID]func()),
		pub:    pub,
		sub:    sub,
		logger: logger,
	}
}

// Join adds the connection to the conversation's broadcast group. Idempotent;
// membership authorization is enforced at message-send time, not here.
func (rt *Router) Join(c Conn, conversationID uuid.UUID) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.groups[conversationID] == nil {
		rt.groups[conversationID] = make(map[string]Conn)
		if rt.sub != nil {
			cancel, err := rt.sub.SubscribeConversation(conversationID, func(event string, payload []byte) {
				rt.deliverLocal(conversationID, event, json.RawMessage(payload))
			})
			if err != nil {
				rt.logger.Warn("conversation subscribe failed",
					zap.Error(err), zap.String("conversation_id", conversationID.String()))
			} else {
				rt.subs[conversationID] = cancel
			}
		}
	}
	rt.groups[conversationID][c.ID()] = c
	rt.logger.Debug("connection joined conversation",
		zap.String("conn_id", c.ID()),
		zap.String("conversation_id", conversationID.String()))
}

// Leave removes the connection from the group; no-op when absent. The last
// member leaving discards the group and cancels its Redis subscription.
func (rt *Router) Leave(c Conn, conversationID uuid.UUID) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.leaveLocked(c.ID(), conversationID)
}

// LeaveAll removes the connection from every group it joined. Called on
// disconnect.
func (rt *Router) LeaveAll(c Conn) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for conversationID, group := range rt.groups {
		if _, ok := group[c.ID()]; ok {
			rt.leaveLocked(c.ID(), conversationID)
		}
	}
}

func (rt *Router) leaveLocked(connID string, conversationID uuid.UUID) {
	group, ok := rt.groups[conversationID]
	if !ok {
		return
	}
	delete(group, connID)
	if len(group) == 0 {
		delete(rt.groups, conversationID)
		if cancel, ok := rt.subs[conversationID]; ok {
			cancel()
			delete(rt.subs, conversationID)
		}
	}
}

// FanOut delivers an event to every member of the conversation's group. With
// a Redis bridge the event is published and the subscription callback does
// the local delivery once per instance; without one, delivery is direct.
// Fire-and-forget per connection.
func (rt *Router) FanOut(conversationID uuid.UUID, event string, payload interface{}) {
	if rt.pub != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			rt.logger.Warn("fan-out marshal failed", zap.Error(err), zap.String("event", event))
			return
		}
		if err := rt.pub.PublishConversationEvent(conversationID, event, data); err == nil {
			return
		}
		// Redis down: fall through to local delivery so this instance's
		// members still hear the event.
	}
	rt.deliverLocal(conversationID, event, payload)
}

// deliverLocal sends to every locally-joined connection without blocking.
func (rt *Router) deliverLocal(conversationID uuid.UUID, event string, payload interface{}) {
	rt.mu.RLock()
	group := rt.groups[conversationID]
	members := make([]Conn, 0, len(group))
	for _, c := range group {
		members = append(members, c)
	}
	rt.mu.RUnlock()

	for _, c := range members {
		if !c.Send(event, payload) {
			rt.logger.Debug("dropped event for slow connection",
				zap.String("conn_id", c.ID()), zap.String("event", event))
		}
	}
}

// GroupSize returns the number of connections joined to a conversation.
func (rt *Router) GroupSize(conversationID uuid.UUID) int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.groups[conversationID])
}
