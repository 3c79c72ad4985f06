// Package api provides HTTP handlers for catalog event WebSocket subscriptions.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nabeul-archive/poemap/internal/events"
	"github.com/nabeul-archive/poemap/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the configured public origin
		return true
	},
}

// EventHandlers holds dependencies for catalog event WebSocket handlers.
type EventHandlers struct {
	broadcaster *events.Broadcaster
}

// NewEventHandlers creates a new EventHandlers instance.
func NewEventHandlers(broadcaster *events.Broadcaster) *EventHandlers {
	return &EventHandlers{broadcaster: broadcaster}
}

// Subscribe handles WebSocket connections for real-time catalog updates.
// GET /ws
func (h *EventHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}

	h.broadcaster.Subscribe(conn)

	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "websocket client subscribed to catalog events",
		"request_id", requestID,
	)

	defer func() {
		h.broadcaster.Unsubscribe(conn)
		conn.Close()
		slog.InfoContext(ctx, "websocket client unsubscribed",
			"request_id", requestID,
		)
	}()

	// Keep connection alive - read messages to detect disconnection.
	// Clients are not expected to send anything.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.WarnContext(ctx, "websocket connection closed unexpectedly", "error", err)
			}
			break
		}
	}
}
