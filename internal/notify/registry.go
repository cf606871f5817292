package notify

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Registry is a live websocket connection registry keyed by user id. A user
// may hold several connections (multiple devices); Push writes to all of
// them and silently drops users with none.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[*websocket.Conn]*sync.Mutex
	log   *zap.Logger
}

var _ Gateway = (*Registry)(nil)

// NewRegistry returns an empty Registry.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		conns: make(map[uuid.UUID]map[*websocket.Conn]*sync.Mutex),
		log:   log,
	}
}

// Register attaches a connection to a user.
func (r *Registry) Register(userID uuid.UUID, c *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[userID] == nil {
		r.conns[userID] = make(map[*websocket.Conn]*sync.Mutex)
	}
	r.conns[userID][c] = &sync.Mutex{}
}

// Unregister detaches a connection; the caller closes it.
func (r *Registry) Unregister(userID uuid.UUID, c *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.conns[userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.conns, userID)
		}
	}
}

// Push writes the event to every live connection the user holds. Write
// failures are logged and otherwise ignored; the owning transaction has
// already committed by the time anything is pushed.
//
// gorilla/websocket allows at most one concurrent writer per connection, so
// each write is serialized on the connection's own mutex. The registry lock
// is released before writing; a connection unregistered mid-push just fails
// its write.
func (r *Registry) Push(userID uuid.UUID, evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		r.log.Warn("notify: marshal event", zap.String("type", evt.Type), zap.Error(err))
		return
	}

	r.mu.RLock()
	set := r.conns[userID]
	targets := make(map[*websocket.Conn]*sync.Mutex, len(set))
	for c, wmu := range set {
		targets[c] = wmu
	}
	r.mu.RUnlock()

	for c, wmu := range targets {
		wmu.Lock()
		err := c.WriteMessage(websocket.TextMessage, payload)
		wmu.Unlock()
		if err != nil {
			r.log.Warn("notify: push failed",
				zap.String("user_id", userID.String()),
				zap.String("type", evt.Type),
				zap.Error(err))
		}
	}
}
