package realtime

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type routerConn struct {
	mu     sync.Mutex
	id     string
	full   bool
	events []string
}

func (c *routerConn) ID() string { return c.id }

func (c *routerConn) Send(event string, _ interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	c.events = append(c.events, event)
	return true
}

func (c *routerConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

type fakeBridge struct {
	mu         sync.Mutex
	publishErr error
	published  []string
	handlers   map[uuid.UUID]func(event string, payload []byte)
	cancels    int
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{handlers: make(map[uuid.UUID]func(string, []byte))}
}

func (b *fakeBridge) PublishConversationEvent(conversationID uuid.UUID, event string, payload []byte) error {
	b.mu.Lock()
	if b.publishErr != nil {
		defer b.mu.Unlock()
		return b.publishErr
	}
	b.published = append(b.published, event)
	handler := b.handlers[conversationID]
	b.mu.Unlock()
	// Echo back to the subscriber the way Redis pub/sub does.
	if handler != nil {
		handler(event, payload)
	}
	return nil
}

func (b *fakeBridge) SubscribeConversation(conversationID uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[conversationID] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, conversationID)
		b.cancels++
	}, nil
}

func TestRouter_JoinIsIdempotent(t *testing.T) {
	rt := NewRouter(nil, nil, nil)
	conv := uuid.New()
	c := &routerConn{id: "c1"}

	rt.Join(c, conv)
	rt.Join(c, conv)
	require.Equal(t, 1, rt.GroupSize(conv))
}

func TestRouter_LeaveAbsentIsNoop(t *testing.T) {
	rt := NewRouter(nil, nil, nil)
	conv := uuid.New()

	rt.Leave(&routerConn{id: "stranger"}, conv)
	require.Equal(t, 0, rt.GroupSize(conv))
}

func TestRouter_FanOutLocal(t *testing.T) {
	rt := NewRouter(nil, nil, nil)
	conv := uuid.New()
	other := uuid.New()

	a := &routerConn{id: "a"}
	b := &routerConn{id: "b"}
	outsider := &routerConn{id: "outsider"}
	rt.Join(a, conv)
	rt.Join(b, conv)
	rt.Join(outsider, other)

	rt.FanOut(conv, "new_message", map[string]string{"content": "hi"})

	require.Equal(t, []string{"new_message"}, a.received())
	require.Equal(t, []string{"new_message"}, b.received())
	require.Empty(t, outsider.received())
}

func TestRouter_FanOutSkipsFullConnections(t *testing.T) {
	rt := NewRouter(nil, nil, nil)
	conv := uuid.New()

	stuck := &routerConn{id: "stuck", full: true}
	healthy := &routerConn{id: "healthy"}
	rt.Join(stuck, conv)
	rt.Join(healthy, conv)

	rt.FanOut(conv, "new_message", nil)

	require.Empty(t, stuck.received())
	require.Equal(t, []string{"new_message"}, healthy.received())
}

func TestRouter_LastLeaveDiscardsGroupAndSubscription(t *testing.T) {
	bridge := newFakeBridge()
	rt := NewRouter(nil, bridge, bridge)
	conv := uuid.New()

	a := &routerConn{id: "a"}
	b := &routerConn{id: "b"}
	rt.Join(a, conv)
	rt.Join(b, conv)

	rt.Leave(a, conv)
	bridge.mu.Lock()
	require.Zero(t, bridge.cancels)
	bridge.mu.Unlock()

	rt.Leave(b, conv)
	require.Equal(t, 0, rt.GroupSize(conv))
	bridge.mu.Lock()
	require.Equal(t, 1, bridge.cancels)
	bridge.mu.Unlock()
}

func TestRouter_LeaveAll(t *testing.T) {
	rt := NewRouter(nil, nil, nil)
	conv1 := uuid.New()
	conv2 := uuid.New()

	c := &routerConn{id: "c"}
	stay := &routerConn{id: "stay"}
	rt.Join(c, conv1)
	rt.Join(c, conv2)
	rt.Join(stay, conv1)

	rt.LeaveAll(c)
	require.Equal(t, 1, rt.GroupSize(conv1))
	require.Equal(t, 0, rt.GroupSize(conv2))
}

func TestRouter_FanOutViaBridgeDeliversOnce(t *testing.T) {
	bridge := newFakeBridge()
	rt := NewRouter(nil, bridge, bridge)
	conv := uuid.New()

	c := &routerConn{id: "c"}
	rt.Join(c, conv)

	rt.FanOut(conv, "new_message", map[string]string{"content": "hi"})

	// Published once, delivered locally once through the subscription echo.
	bridge.mu.Lock()
	require.Equal(t, []string{"new_message"}, bridge.published)
	bridge.mu.Unlock()
	require.Equal(t, []string{"new_message"}, c.received())
}

func TestRouter_FanOutFallsBackWhenPublishFails(t *testing.T) {
	bridge := newFakeBridge()
	bridge.publishErr = errors.New("connection refused")
	rt := NewRouter(nil, bridge, bridge)
	conv := uuid.New()

	c := &routerConn{id: "c"}
	rt.Join(c, conv)

	rt.FanOut(conv, "new_message", nil)
	require.Equal(t, []string{"new_message"}, c.received())
}
