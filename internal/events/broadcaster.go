// Package events provides WebSocket broadcasting for real-time catalog
// updates: published and edited locations, deletions, and unlocks.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types pushed to subscribers.
const (
	TypeLocationPublished = "location.published"
	TypeLocationUpdated   = "location.updated"
	TypeLocationDeleted   = "location.deleted"
	TypeLocationUnlocked  = "location.unlocked"
)

// Event is one catalog change notification.
type Event struct {
	Type       string      `json:"type"`
	LocationID string      `json:"location_id"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Broadcaster manages WebSocket connections and fans out catalog events.
// Each connection carries its own write mutex: gorilla/websocket supports at
// most one concurrent writer per connection, and broadcasts can overlap.
type Broadcaster struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]*sync.Mutex
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		connections: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Subscribe registers a WebSocket connection.
func (b *Broadcaster) Subscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connections[conn] = &sync.Mutex{}
}

// Unsubscribe removes a WebSocket connection.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.connections, conn)
}

// Broadcast sends the event to every subscriber.
func (b *Broadcaster) Broadcast(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	type subscriber struct {
		conn    *websocket.Conn
		writeMu *sync.Mutex
	}

	b.mu.RLock()
	subs := make([]subscriber, 0, len(b.connections))
	for conn, writeMu := range b.connections {
		subs = append(subs, subscriber{conn: conn, writeMu: writeMu})
	}
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	// Serialize once
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal catalog event", "error", err)
		return
	}

	for _, sub := range subs {
		sub.writeMu.Lock()
		err := sub.conn.WriteMessage(websocket.TextMessage, data)
		sub.writeMu.Unlock()
		if err != nil {
			slog.Warn("failed to send message to websocket client",
				"error", err,
				"event_type", event.Type,
			)
			// Connection will be cleaned up when client disconnects
		}
	}
}

// ConnectionCount returns the number of active WebSocket connections.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections)
}
