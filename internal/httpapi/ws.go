package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/taskradar/taskradar/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Connect - websocket for live dispatch events (offers, bids, bookings).
// The protocol is server push; client messages are discarded.
func (h *Handler) Connect(c echo.Context) error {
	userID := auth.UserID(c)

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h.registry.Register(userID, ws)
	h.log.Debug("websocket connected", zap.String("user_id", userID.String()))

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.registry.Unregister(userID, ws)
			_ = ws.Close()
			h.log.Debug("websocket disconnected", zap.String("user_id", userID.String()))
			break
		}
	}
	return nil
}
