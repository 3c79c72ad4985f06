// Package notify implements the transient in-app message center. The center
// holds at most one notification; publishing a new one replaces the current
// one and subscribers observe the change on a channel.
package notify

import "sync"

// Notification is one transient message.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// AssetURL optionally points at an image shown with the message.
	AssetURL string `json:"asset_url,omitempty"`
}

// Center is the single-slot notification hub. Thread-safe.
type Center struct {
	mu      sync.Mutex
	current *Notification
	subs    map[chan *Notification]struct{}
}

// NewCenter creates an empty notification center.
func NewCenter() *Center {
	return &Center{
		subs: make(map[chan *Notification]struct{}),
	}
}

// Publish replaces the current notification and fans it out. Slow
// subscribers miss intermediate values instead of blocking the publisher.
func (c *Center) Publish(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = &n
	c.fanOut(&n)
}

// Dismiss clears the current notification. Subscribers see a nil value.
func (c *Center) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return
	}
	c.current = nil
	c.fanOut(nil)
}

// Current returns the visible notification, or nil when dismissed.
func (c *Center) Current() *Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}
	copied := *c.current
	return &copied
}

// Subscribe registers a listener. The returned cancel func must be called to
// release the channel.
func (c *Center) Subscribe() (<-chan *Notification, func()) {
	ch := make(chan *Notification, 1)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// fanOut delivers to every subscriber, dropping the stale buffered value
// first so each channel always carries the latest state. Callers hold mu.
func (c *Center) fanOut(n *Notification) {
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- n:
		default:
		}
	}
}
