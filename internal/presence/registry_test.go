package presence

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	id     string
	userID uuid.UUID
	events []string
}

func (c *fakeConn) ID() string        { return c.id }
func (c *fakeConn) UserID() uuid.UUID { return c.userID }

func (c *fakeConn) Send(event string, _ interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return true
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

type transition struct {
	userID uuid.UUID
	online bool
}

func TestRegistry_MultipleHandlesOneUser(t *testing.T) {
	r := NewRegistry(nil)
	user := uuid.New()

	var transitions []transition
	r.SetChangeHandler(func(id uuid.UUID, online bool) {
		transitions = append(transitions, transition{id, online})
	})

	laptop := &fakeConn{id: "laptop", userID: user}
	phone := &fakeConn{id: "phone", userID: user}

	r.Register(laptop)
	r.Register(phone)
	require.True(t, r.IsOnline(user))
	require.Equal(t, 1, r.Count())

	// Closing one tab keeps the user online; no transition fires.
	r.Unregister(laptop)
	require.True(t, r.IsOnline(user))
	require.Len(t, transitions, 1)

	r.Unregister(phone)
	require.False(t, r.IsOnline(user))
	require.Equal(t, 0, r.Count())

	require.Equal(t, []transition{{user, true}, {user, false}}, transitions)
}

func TestRegistry_UnregisterUnknownHandleIsNoop(t *testing.T) {
	r := NewRegistry(nil)
	user := uuid.New()

	fired := 0
	r.SetChangeHandler(func(uuid.UUID, bool) { fired++ })

	r.Unregister(&fakeConn{id: "ghost", userID: user})
	require.False(t, r.IsOnline(user))
	require.Zero(t, fired)
}

func TestRegistry_QueryStatuses(t *testing.T) {
	r := NewRegistry(nil)
	online := uuid.New()
	offline := uuid.New()

	r.Register(&fakeConn{id: "c1", userID: online})

	statuses := r.QueryStatuses([]uuid.UUID{online, offline})
	require.Equal(t, []Status{
		{UserID: online, Online: true},
		{UserID: offline, Online: false},
	}, statuses)
}

func TestRegistry_OnlineIDsSnapshot(t *testing.T) {
	r := NewRegistry(nil)
	user := uuid.New()
	c := &fakeConn{id: "c1", userID: user}
	r.Register(c)

	seq := r.OnlineIDs()
	r.Unregister(c)

	// The sequence was captured before the unregister and still yields the
	// user; it is also restartable.
	for range 2 {
		var ids []uuid.UUID
		for id := range seq {
			ids = append(ids, id)
		}
		require.Equal(t, []uuid.UUID{user}, ids)
	}

	var after []uuid.UUID
	for id := range r.OnlineIDs() {
		after = append(after, id)
	}
	require.Empty(t, after)
}

func TestRegistry_SendToUserHitsEveryHandle(t *testing.T) {
	r := NewRegistry(nil)
	user := uuid.New()
	other := uuid.New()

	laptop := &fakeConn{id: "laptop", userID: user}
	phone := &fakeConn{id: "phone", userID: user}
	bystander := &fakeConn{id: "bystander", userID: other}
	r.Register(laptop)
	r.Register(phone)
	r.Register(bystander)

	r.SendToUser(user, "ping", nil)

	require.Equal(t, []string{"ping"}, laptop.received())
	require.Equal(t, []string{"ping"}, phone.received())
	require.Empty(t, bystander.received())
}

func TestRegistry_BroadcastHitsEveryone(t *testing.T) {
	r := NewRegistry(nil)
	a := &fakeConn{id: "a", userID: uuid.New()}
	b := &fakeConn{id: "b", userID: uuid.New()}
	r.Register(a)
	r.Register(b)

	r.Broadcast("announcement", nil)

	require.Equal(t, []string{"announcement"}, a.received())
	require.Equal(t, []string{"announcement"}, b.received())
}
