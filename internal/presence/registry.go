// Package presence tracks which users hold live connections in this process.
// A user is online iff they own at least one live handle; multiple tabs or
// devices are multiple handles. The registry is process-local: in a
// multi-process deployment each process sees only its own connections.
package presence

import (
	"iter"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Conn is one live connection handle. Send must not block; it reports whether
// the payload was accepted.
type Conn interface {
	ID() string
	UserID() uuid.UUID
	Send(event string, payload interface{}) bool
}

// ChangeHandler is called when a user transitions between online and offline.
// It fires on the first handle registered and the last handle removed, never
// on intermediate handles.
type ChangeHandler func(userID uuid.UUID, online bool)

// Status is one entry of a bulk presence query.
type Status struct {
	UserID uuid.UUID `json:"user_id"`
	Online bool      `json:"online"`
}

// Registry owns the userID -> handle-set map. All mutation goes through its
// methods; construct one per process and inject it.
type Registry struct {
	mu       sync.RWMutex
	conns    map[uuid.UUID]map[string]Conn
	onChange ChangeHandler
	logger   *zap.Logger
}

// NewRegistry creates an empty presence registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		conns:  make(map[uuid.UUID]map[string]Conn),
		logger: logger,
	}
}

// SetChangeHandler sets the callback for online/offline transitions.
func (r *Registry) SetChangeHandler(fn ChangeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Register adds a handle. The first handle for a user emits an online
// transition.
func (r *Registry) Register(c Conn) {
	userID := c.UserID()
	r.mu.Lock()
	first := r.conns[userID] == nil
	if first {
		r.conns[userID] = make(map[string]Conn)
	}
	r.conns[userID][c.ID()] = c
	onChange := r.onChange
	r.mu.Unlock()

	r.logger.Debug("connection registered",
		zap.String("user_id", userID.String()),
		zap.String("conn_id", c.ID()))
	if first && onChange != nil {
		onChange(userID, true)
	}
}

// Unregister removes a handle. Only removing the user's last handle emits an
// offline transition; other tabs keep the user online.
func (r *Registry) Unregister(c Conn) {
	userID := c.UserID()
	r.mu.Lock()
	last := false
	if handles, ok := r.conns[userID]; ok {
		if _, ok := handles[c.ID()]; ok {
			delete(handles, c.ID())
			if len(handles) == 0 {
				delete(r.conns, userID)
				last = true
			}
		}
	}
	onChange := r.onChange
	r.mu.Unlock()

	r.logger.Debug("connection unregistered",
		zap.String("user_id", userID.String()),
		zap.String("conn_id", c.ID()))
	if last && onChange != nil {
		onChange(userID, false)
	}
}

// IsOnline reports whether the user owns at least one live handle.
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// Count returns the number of distinct online users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// OnlineIDs returns a restartable sequence over the users online at call
// time. The snapshot is taken once; later registry changes do not affect it.
func (r *Registry) OnlineIDs() iter.Seq[uuid.UUID] {
	r.mu.RLock()
	ids := make([]uuid.UUID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	return func(yield func(uuid.UUID) bool) {
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// QueryStatuses reports presence for each requested id. Never-seen ids report
// offline.
func (r *Registry) QueryStatuses(userIDs []uuid.UUID) []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, Status{UserID: id, Online: len(r.conns[id]) > 0})
	}
	return out
}

// SendToUser delivers an event to every handle the user owns (their personal
// channel). Delivery is best-effort per handle.
func (r *Registry) SendToUser(userID uuid.UUID, event string, payload interface{}) {
	r.mu.RLock()
	handles := make([]Conn, 0, len(r.conns[userID]))
	for _, c := range r.conns[userID] {
		handles = append(handles, c)
	}
	r.mu.RUnlock()

	for _, c := range handles {
		c.Send(event, payload)
	}
}

// Broadcast delivers an event to every live handle in this process.
func (r *Registry) Broadcast(event string, payload interface{}) {
	r.mu.RLock()
	handles := make([]Conn, 0)
	for _, userConns := range r.conns {
		for _, c := range userConns {
			handles = append(handles, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range handles {
		c.Send(event, payload)
	}
}
