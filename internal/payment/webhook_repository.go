package payment

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEventAlreadyProcessed reports a duplicate webhook delivery. Stripe
// retries deliveries, so the first processing wins and later ones are
// absorbed.
var ErrEventAlreadyProcessed = errors.New("webhook event already processed")

// WebhookEvent is the processed-event record kept for idempotency.
type WebhookEvent struct {
	ID          string
	EventID     string // Stripe event ID
	EventType   string // Stripe event type
	ProcessedAt time.Time
}

// WebhookRepository tracks which Stripe events have been handled so top-up
// credits are applied at most once per event.
type WebhookRepository interface {
	// RecordEvent marks eventID as processed. A repeat call with the same
	// eventID returns ErrEventAlreadyProcessed.
	RecordEvent(eventID, eventType string) error

	// HasProcessed reports whether eventID was already recorded.
	HasProcessed(eventID string) (bool, error)

	// Remove drops a recorded event so a delivery retry can reprocess it.
	// Removing an unknown eventID is a no-op.
	Remove(eventID string) error
}

// InMemoryWebhookRepository keeps the processed-event set in memory.
type InMemoryWebhookRepository struct {
	mu     sync.RWMutex
	events map[string]*WebhookEvent // keyed by Stripe event ID
}

// NewInMemoryWebhookRepository creates an empty repository.
func NewInMemoryWebhookRepository() *InMemoryWebhookRepository {
	return &InMemoryWebhookRepository{
		events: make(map[string]*WebhookEvent),
	}
}

// RecordEvent marks eventID as processed, rejecting duplicates.
func (r *InMemoryWebhookRepository) RecordEvent(eventID, eventType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[eventID]; exists {
		return ErrEventAlreadyProcessed
	}

	r.events[eventID] = &WebhookEvent{
		ID:          uuid.New().String(),
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}
	return nil
}

// HasProcessed reports whether eventID was already recorded.
func (r *InMemoryWebhookRepository) HasProcessed(eventID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.events[eventID]
	return exists, nil
}

// Remove drops a recorded event.
func (r *InMemoryWebhookRepository) Remove(eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.events, eventID)
	return nil
}
