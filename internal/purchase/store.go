package purchase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nabeul-archive/poemap/internal/profile"
)

// Store errors.
var (
	// ErrInsufficientFunds is returned when the viewer's balance does not
	// cover the location's price. No mutation happens in that case.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAlreadyPurchased is returned when the viewer already holds a
	// grant for the location.
	ErrAlreadyPurchased = errors.New("location already purchased")
)

// GrantStore persists unlock grants. Grant must debit the balance and
// record the grant as one atomic operation: either both happen or neither.
type GrantStore interface {
	// Grant debits price from the user's balance and records the unlock.
	// Returns the new balance. Fails with ErrInsufficientFunds (no debit)
	// or ErrAlreadyPurchased (no double charge).
	Grant(ctx context.Context, userID, locationID string, price int64) (int64, error)

	// Has reports whether the user holds a grant for the location.
	Has(ctx context.Context, userID, locationID string) (bool, error)

	// ListByUser returns all grants held by the user.
	ListByUser(ctx context.Context, userID string) ([]*Grant, error)
}

// InMemoryGrantStore implements GrantStore against an in-memory profile
// repository. Thread-safe; the store's own lock covers the check-debit-
// record sequence so concurrent purchases cannot double charge.
type InMemoryGrantStore struct {
	mu       sync.RWMutex
	profiles profile.Repository
	grants   map[string]map[string]*Grant // userID -> locationID -> grant
}

// NewInMemoryGrantStore creates an in-memory grant store that debits
// balances through the given profile repository.
func NewInMemoryGrantStore(profiles profile.Repository) *InMemoryGrantStore {
	return &InMemoryGrantStore{
		profiles: profiles,
		grants:   make(map[string]map[string]*Grant),
	}
}

// Grant debits price from the user's balance and records the unlock.
func (s *InMemoryGrantStore) Grant(ctx context.Context, userID, locationID string, price int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.grants[userID][locationID]; ok {
		return 0, ErrAlreadyPurchased
	}

	balance, err := s.profiles.Debit(ctx, userID, price)
	if err != nil {
		if errors.Is(err, profile.ErrInsufficientBalance) {
			return balance, ErrInsufficientFunds
		}
		return 0, err
	}

	now := time.Now()
	if s.grants[userID] == nil {
		s.grants[userID] = make(map[string]*Grant)
	}
	s.grants[userID][locationID] = &Grant{
		UserID:      userID,
		LocationID:  locationID,
		PricePaid:   price,
		PurchasedAt: &now,
	}
	return balance, nil
}

// Has reports whether the user holds a grant for the location.
func (s *InMemoryGrantStore) Has(ctx context.Context, userID, locationID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.grants[userID][locationID]
	return ok, nil
}

// ListByUser returns all grants held by the user.
func (s *InMemoryGrantStore) ListByUser(ctx context.Context, userID string) ([]*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Grant
	for _, g := range s.grants[userID] {
		copied := *g
		out = append(out, &copied)
	}
	return out, nil
}
