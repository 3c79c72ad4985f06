package notify

import (
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan *Notification) *Notification {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
		return nil
	}
}

// TestPublishReplaces verifies the single-slot rule: a new notification
// replaces the current one.
func TestPublishReplaces(t *testing.T) {
	c := NewCenter()

	c.Publish(Notification{Title: "first"})
	c.Publish(Notification{Title: "second"})

	cur := c.Current()
	if cur == nil || cur.Title != "second" {
		t.Fatalf("current = %+v, want second", cur)
	}
}

func TestDismiss(t *testing.T) {
	c := NewCenter()
	c.Publish(Notification{Title: "hello"})
	c.Dismiss()
	if cur := c.Current(); cur != nil {
		t.Fatalf("current after dismiss = %+v, want nil", cur)
	}
}

// TestSubscribe verifies subscribers observe replacement and dismissal, and
// a slow subscriber only sees the latest state.
func TestSubscribe(t *testing.T) {
	c := NewCenter()
	ch, cancel := c.Subscribe()
	defer cancel()

	c.Publish(Notification{Title: "one"})
	if n := receive(t, ch); n == nil || n.Title != "one" {
		t.Fatalf("got %+v, want one", n)
	}

	// Without draining in between, only the newest value remains buffered.
	c.Publish(Notification{Title: "two"})
	c.Publish(Notification{Title: "three"})
	if n := receive(t, ch); n == nil || n.Title != "three" {
		t.Fatalf("got %+v, want three", n)
	}

	c.Dismiss()
	if n := receive(t, ch); n != nil {
		t.Fatalf("got %+v after dismiss, want nil", n)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	c := NewCenter()
	ch, cancel := c.Subscribe()
	cancel()
	cancel() // idempotent

	c.Publish(Notification{Title: "late"})
	if n, ok := <-ch; ok {
		t.Fatalf("closed channel delivered %+v", n)
	}
}
