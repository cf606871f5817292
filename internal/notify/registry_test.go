package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// dialConn spins up a websocket echo point and returns the client side plus
// the server side registered in the registry.
func dialConn(t *testing.T, r *Registry, userID uuid.UUID) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			t.Error(err)
			return
		}
		r.Register(userID, c)
		close(registered)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	<-registered
	return client
}

func TestPushConcurrentWritersOneConn(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	userID := uuid.New()
	client := dialConn(t, r, userID)

	const pushes = 64
	var wg sync.WaitGroup
	for i := 0; i < pushes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Push(userID, Event{Type: EventJobOffer})
		}()
	}
	wg.Wait()

	// Every push must arrive intact; interleaved frames would corrupt or
	// drop messages.
	for i := 0; i < pushes; i++ {
		var evt Event
		require.NoError(t, client.ReadJSON(&evt))
		assert.Equal(t, EventJobOffer, evt.Type)
	}
}

func TestPushUnknownUserIsNoOp(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	assert.NotPanics(t, func() {
		r.Push(uuid.New(), Event{Type: EventJobBooked})
	})
}

func TestUnregisterStopsDelivery(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	userID := uuid.New()
	client := dialConn(t, r, userID)

	r.Push(userID, Event{Type: EventJobOffer})
	var evt Event
	require.NoError(t, client.ReadJSON(&evt))

	r.mu.RLock()
	var server *websocket.Conn
	for c := range r.conns[userID] {
		server = c
	}
	r.mu.RUnlock()
	require.NotNil(t, server)

	r.Unregister(userID, server)
	r.Push(userID, Event{Type: EventJobTaken})

	r.mu.RLock()
	_, stillThere := r.conns[userID]
	r.mu.RUnlock()
	assert.False(t, stillThere, "empty connection sets are pruned")
}
