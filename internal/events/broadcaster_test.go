package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsPair spins up a WebSocket server and returns the server and client ends
// of one upgraded connection.
func wsPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	server := <-serverConns
	t.Cleanup(func() { server.Close() })
	return server, client
}

// TestBroadcastDeliversEvent verifies subscribers receive the serialized
// event with a timestamp filled in.
func TestBroadcastDeliversEvent(t *testing.T) {
	server, client := wsPair(t)

	b := NewBroadcaster()
	b.Subscribe(server)
	if b.ConnectionCount() != 1 {
		t.Fatalf("connection count = %d, want 1", b.ConnectionCount())
	}

	b.Broadcast(&Event{Type: TypeLocationPublished, LocationID: "loc-1"})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var got Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Type != TypeLocationPublished || got.LocationID != "loc-1" {
		t.Errorf("event = %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not filled in")
	}
}

// TestUnsubscribeStopsDelivery verifies removed connections no longer
// receive events.
func TestUnsubscribeStopsDelivery(t *testing.T) {
	server, client := wsPair(t)

	b := NewBroadcaster()
	b.Subscribe(server)
	b.Unsubscribe(server)
	if b.ConnectionCount() != 0 {
		t.Fatalf("connection count = %d, want 0", b.ConnectionCount())
	}

	b.Broadcast(&Event{Type: TypeLocationDeleted, LocationID: "loc-1"})

	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := client.ReadMessage(); err == nil {
		t.Error("unsubscribed connection still received an event")
	}
}

// TestConcurrentBroadcasts fires overlapping broadcasts at one subscriber.
// The connection allows a single writer at a time, so the broadcaster has
// to serialize its writes; every message still arrives intact.
func TestConcurrentBroadcasts(t *testing.T) {
	server, client := wsPair(t)

	b := NewBroadcaster()
	b.Subscribe(server)

	const (
		writers          = 4
		eventsPerWriter  = 25
		expectedMessages = writers * eventsPerWriter
	)

	received := make(chan error, 1)
	go func() {
		for i := 0; i < expectedMessages; i++ {
			client.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, data, err := client.ReadMessage()
			if err != nil {
				received <- fmt.Errorf("read %d: %w", i, err)
				return
			}
			var got Event
			if err := json.Unmarshal(data, &got); err != nil {
				received <- fmt.Errorf("read %d: corrupt frame: %w", i, err)
				return
			}
		}
		received <- nil
	}()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < eventsPerWriter; i++ {
				b.Broadcast(&Event{
					Type:       TypeLocationUpdated,
					LocationID: fmt.Sprintf("loc-%d-%d", w, i),
				})
			}
		}(w)
	}
	wg.Wait()

	if err := <-received; err != nil {
		t.Fatal(err)
	}
}
