package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/sabyrkhan/cafe-pos/internal/realtime"
	"go.uber.org/zap"
)

type WSHandler struct {
	hub    *realtime.Hub
	logger *zap.Logger
}

func NewWSHandler(hub *realtime.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		logger: logger,
	}
}

// Dashboard holds a viewer connection open and pushes a bare
// "dashboard_updated" frame on every hub signal. The frame carries no data:
// clients re-fetch whatever views they display.
func (h *WSHandler) Dashboard(conn *websocket.Conn) {
	sessionID, signals, leave := h.hub.Join()
	defer leave()

	// Reader goroutine: its only job is noticing the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-signals:
			err := conn.WriteJSON(map[string]string{"event": "dashboard_updated"})
			if err != nil {
				h.logger.Debug(
					"Dashboard push failed, dropping session",
					zap.String("session_id", sessionID.String()),
					zap.Error(err),
				)
				return
			}
		case <-closed:
			return
		}
	}
}
