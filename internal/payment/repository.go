package payment

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRecordNotFound is returned when a top-up record is not found.
var ErrRecordNotFound = errors.New("top-up record not found")

// TopUpRepository defines methods for top-up record persistence.
type TopUpRepository interface {
	Insert(record *TopUpRecord) error
	GetByID(id string) (*TopUpRecord, error)
	GetBySessionID(sessionID string) (*TopUpRecord, error)
	Update(record *TopUpRecord) error
}

// InMemoryTopUpRepository implements TopUpRepository with in-memory storage.
type InMemoryTopUpRepository struct {
	mu      sync.RWMutex
	records map[string]*TopUpRecord
}

// NewInMemoryTopUpRepository creates a new in-memory top-up repository.
func NewInMemoryTopUpRepository() *InMemoryTopUpRepository {
	return &InMemoryTopUpRepository{
		records: make(map[string]*TopUpRecord),
	}
}

// Insert adds a new top-up record.
func (r *InMemoryTopUpRepository) Insert(record *TopUpRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	// Set timestamps for new record
	now := time.Now()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}

	// Deep copy to prevent external mutation
	copied := *record
	r.records[record.ID] = &copied

	return nil
}

// GetByID retrieves a top-up record by ID.
func (r *InMemoryTopUpRepository) GetByID(id string) (*TopUpRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}

	copied := *record
	return &copied, nil
}

// GetBySessionID retrieves a top-up record by Checkout Session ID.
func (r *InMemoryTopUpRepository) GetBySessionID(sessionID string) (*TopUpRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, record := range r.records {
		if record.SessionID == sessionID {
			copied := *record
			return &copied, nil
		}
	}

	return nil, ErrRecordNotFound
}

// Update updates an existing top-up record.
func (r *InMemoryTopUpRepository) Update(record *TopUpRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[record.ID]; !ok {
		return ErrRecordNotFound
	}

	now := time.Now()
	record.UpdatedAt = &now

	copied := *record
	r.records[record.ID] = &copied

	return nil
}
