package profile

import (
	"context"
	"errors"
	"sync"
)

// Repository errors.
var (
	// ErrProfileNotFound is returned when a profile row does not exist.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInsufficientBalance is returned when a debit would take the
	// balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Repository defines data operations for profiles.
type Repository interface {
	// GetOrCreate fetches the profile for the given identity, lazily
	// creating it with default role and balance when absent.
	GetOrCreate(ctx context.Context, id string) (*Profile, error)

	// GetByID fetches an existing profile.
	GetByID(ctx context.Context, id string) (*Profile, error)

	// UpdateDisplay applies name/bio changes and returns the updated row.
	UpdateDisplay(ctx context.Context, id string, upd ProfileUpdate) (*Profile, error)

	// Credit adds amount to the balance and returns the new balance.
	Credit(ctx context.Context, id string, amount int64) (int64, error)

	// Debit subtracts amount from the balance and returns the new balance.
	// Returns ErrInsufficientBalance when the debit would take the balance
	// negative; the balance is left untouched in that case.
	Debit(ctx context.Context, id string, amount int64) (int64, error)
}

// InMemoryRepository implements Repository with in-memory storage.
// Thread-safe for concurrent access.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewInMemoryRepository creates a new in-memory profile repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		profiles: make(map[string]*Profile),
	}
}

// GetOrCreate fetches the profile, lazily creating it with defaults.
func (r *InMemoryRepository) GetOrCreate(ctx context.Context, id string) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		p = &Profile{
			ID:      id,
			Role:    DefaultRole,
			Balance: DefaultBalance,
		}
		r.profiles[id] = p
	}

	copied := *p
	return &copied, nil
}

// GetByID fetches an existing profile.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	copied := *p
	return &copied, nil
}

// UpdateDisplay applies name/bio changes and returns the updated row.
func (r *InMemoryRepository) UpdateDisplay(ctx context.Context, id string, upd ProfileUpdate) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Bio != nil {
		p.Bio = *upd.Bio
	}
	copied := *p
	return &copied, nil
}

// Credit adds amount to the balance and returns the new balance.
func (r *InMemoryRepository) Credit(ctx context.Context, id string, amount int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		return 0, ErrProfileNotFound
	}
	p.Balance += amount
	return p.Balance, nil
}

// Debit subtracts amount from the balance and returns the new balance.
func (r *InMemoryRepository) Debit(ctx context.Context, id string, amount int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		return 0, ErrProfileNotFound
	}
	if p.Balance < amount {
		return p.Balance, ErrInsufficientBalance
	}
	p.Balance -= amount
	return p.Balance, nil
}

// SetRole overrides the role of a profile. Used by tests and admin tooling.
func (r *InMemoryRepository) SetRole(ctx context.Context, id, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		return ErrProfileNotFound
	}
	p.Role = role
	return nil
}
