package location

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLocationNotFound is returned when a location is not found.
var ErrLocationNotFound = errors.New("location not found")

// Repository defines data operations for poem locations.
type Repository interface {
	// Insert stores a new location. A missing ID is assigned.
	Insert(ctx context.Context, loc *Location) error

	// Update modifies an existing location keyed by ID.
	Update(ctx context.Context, loc *Location) error

	// GetByID retrieves a location by its ID.
	GetByID(ctx context.Context, id string) (*Location, error)

	// List returns all locations ordered by publish date descending.
	List(ctx context.Context) ([]*Location, error)

	// ListByUser returns locations submitted by the given user, ordered by
	// publish date descending.
	ListByUser(ctx context.Context, userID string) ([]*Location, error)

	// Delete removes a location by ID.
	Delete(ctx context.Context, id string) error

	// AddViews adds delta to the view counter and returns the new count.
	// Used as the fallback path when the remote increment procedure is
	// unavailable, and by the counter drain job.
	AddViews(ctx context.Context, id string, delta int64) (int64, error)
}

// InMemoryRepository implements Repository with in-memory storage.
// Thread-safe for concurrent access.
type InMemoryRepository struct {
	mu        sync.RWMutex
	locations map[string]*Location
}

// NewInMemoryRepository creates a new in-memory location repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		locations: make(map[string]*Location),
	}
}

// Insert stores a new location. A missing ID is assigned.
func (r *InMemoryRepository) Insert(ctx context.Context, loc *Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}
	if loc.PublishDate == nil {
		now := time.Now()
		loc.PublishDate = &now
	}

	// Deep copy to prevent external mutation
	copied := *loc
	r.locations[loc.ID] = &copied
	return nil
}

// Update modifies an existing location keyed by ID.
func (r *InMemoryRepository) Update(ctx context.Context, loc *Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.locations[loc.ID]; !ok {
		return ErrLocationNotFound
	}

	copied := *loc
	r.locations[loc.ID] = &copied
	return nil
}

// GetByID retrieves a location by its ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loc, ok := r.locations[id]
	if !ok {
		return nil, ErrLocationNotFound
	}

	copied := *loc
	return &copied, nil
}

// List returns all locations ordered by publish date descending.
// Locations without a publish date sort last.
func (r *InMemoryRepository) List(ctx context.Context) ([]*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Location, 0, len(r.locations))
	for _, loc := range r.locations {
		copied := *loc
		out = append(out, &copied)
	}
	sortByPublishDateDesc(out)
	return out, nil
}

// ListByUser returns locations submitted by the given user.
func (r *InMemoryRepository) ListByUser(ctx context.Context, userID string) ([]*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Location
	for _, loc := range r.locations {
		if loc.UserID == userID {
			copied := *loc
			out = append(out, &copied)
		}
	}
	sortByPublishDateDesc(out)
	return out, nil
}

// Delete removes a location by ID.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.locations[id]; !ok {
		return ErrLocationNotFound
	}
	delete(r.locations, id)
	return nil
}

// AddViews adds delta to the view counter and returns the new count.
func (r *InMemoryRepository) AddViews(ctx context.Context, id string, delta int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loc, ok := r.locations[id]
	if !ok {
		return 0, ErrLocationNotFound
	}
	loc.Views += delta
	return loc.Views, nil
}

func sortByPublishDateDesc(locs []*Location) {
	sort.SliceStable(locs, func(i, j int) bool {
		a, b := locs[i].PublishDate, locs[j].PublishDate
		switch {
		case a == nil && b == nil:
			return locs[i].ID < locs[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
