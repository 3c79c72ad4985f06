// Package catalog keeps the serving copy of the location set: an in-memory
// read-through layer over the repository, hydrated at startup with seed and
// snapshot fallbacks, broadcasting changes to websocket subscribers.
package catalog

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/nabeul-archive/poemap/internal/events"
	"github.com/nabeul-archive/poemap/internal/location"
)

// Catalog implements location.Repository, delegating persistence to the
// inner repository while serving reads from memory.
type Catalog struct {
	mu   sync.RWMutex
	byID map[string]*location.Location

	repo   location.Repository
	cache  *Cache
	bus    *events.Broadcaster
	logger *slog.Logger
}

// Compile-time interface check.
var _ location.Repository = (*Catalog)(nil)

// New creates a catalog over the repository. cache and bus may be nil.
func New(repo location.Repository, cache *Cache, bus *events.Broadcaster, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		byID:   make(map[string]*location.Location),
		repo:   repo,
		cache:  cache,
		bus:    bus,
		logger: logger,
	}
}

// Hydrate fills the in-memory copy. Order of preference: the repository, a
// cached snapshot, the bundled seed set. Hydrate never fails; an empty or
// unreachable store just degrades to the fallbacks.
func (c *Catalog) Hydrate(ctx context.Context) {
	locs, err := c.repo.List(ctx)
	if err != nil {
		c.logger.Warn("catalog store unreachable, trying snapshot",
			slog.String("error", err.Error()))
		locs = c.loadSnapshot(ctx)
	}
	if len(locs) == 0 {
		c.logger.Info("catalog empty, loading seed locations")
		locs = location.SeedLocations()
	}

	c.mu.Lock()
	c.byID = make(map[string]*location.Location, len(locs))
	for _, loc := range locs {
		copied := *loc
		c.byID[loc.ID] = &copied
	}
	c.mu.Unlock()

	c.logger.Info("catalog hydrated", slog.Int("locations", len(locs)))
	c.saveSnapshot(ctx)
}

func (c *Catalog) loadSnapshot(ctx context.Context) []*location.Location {
	if c.cache == nil {
		return nil
	}
	locs, err := c.cache.Load(ctx)
	if err != nil {
		c.logger.Warn("catalog snapshot unavailable", slog.String("error", err.Error()))
		return nil
	}
	return locs
}

// saveSnapshot writes the current memory state to the cache, best effort.
func (c *Catalog) saveSnapshot(ctx context.Context) {
	if c.cache == nil {
		return
	}
	locs, _ := c.List(ctx)
	if err := c.cache.Save(ctx, locs); err != nil {
		c.logger.Warn("failed to save catalog snapshot", slog.String("error", err.Error()))
	}
}

func (c *Catalog) broadcast(eventType string, loc *location.Location) {
	if c.bus == nil {
		return
	}
	c.bus.Broadcast(&events.Event{
		Type:       eventType,
		LocationID: loc.ID,
		Payload:    loc,
	})
}

// Insert persists a new location, then updates memory and subscribers.
func (c *Catalog) Insert(ctx context.Context, loc *location.Location) error {
	if err := c.repo.Insert(ctx, loc); err != nil {
		return err
	}

	c.mu.Lock()
	copied := *loc
	c.byID[loc.ID] = &copied
	c.mu.Unlock()

	c.saveSnapshot(ctx)
	c.broadcast(events.TypeLocationPublished, loc)
	return nil
}

// Update persists an edit, then updates memory and subscribers.
func (c *Catalog) Update(ctx context.Context, loc *location.Location) error {
	if err := c.repo.Update(ctx, loc); err != nil {
		return err
	}

	c.mu.Lock()
	copied := *loc
	c.byID[loc.ID] = &copied
	c.mu.Unlock()

	c.saveSnapshot(ctx)
	c.broadcast(events.TypeLocationUpdated, loc)
	return nil
}

// GetByID serves from memory, falling back to the repository for rows that
// landed after hydration through another instance.
func (c *Catalog) GetByID(ctx context.Context, id string) (*location.Location, error) {
	c.mu.RLock()
	loc, ok := c.byID[id]
	if ok {
		copied := *loc
		c.mu.RUnlock()
		return &copied, nil
	}
	c.mu.RUnlock()

	loc, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	copied := *loc
	c.byID[loc.ID] = &copied
	c.mu.Unlock()
	return loc, nil
}

// List returns the in-memory catalog ordered by publish date descending.
func (c *Catalog) List(ctx context.Context) ([]*location.Location, error) {
	c.mu.RLock()
	out := make([]*location.Location, 0, len(c.byID))
	for _, loc := range c.byID {
		copied := *loc
		out = append(out, &copied)
	}
	c.mu.RUnlock()

	sortByPublishDateDesc(out)
	return out, nil
}

// ListByUser filters the in-memory catalog by submitter.
func (c *Catalog) ListByUser(ctx context.Context, userID string) ([]*location.Location, error) {
	c.mu.RLock()
	var out []*location.Location
	for _, loc := range c.byID {
		if loc.UserID == userID {
			copied := *loc
			out = append(out, &copied)
		}
	}
	c.mu.RUnlock()

	sortByPublishDateDesc(out)
	return out, nil
}

// Delete removes the location from the store, memory, and subscribers.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	c.mu.RLock()
	loc := c.byID[id]
	c.mu.RUnlock()

	if err := c.repo.Delete(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.byID, id)
	c.mu.Unlock()

	c.saveSnapshot(ctx)
	if loc != nil {
		c.broadcast(events.TypeLocationDeleted, loc)
	}
	return nil
}

// AddViews applies a view delta to the store and mirrors it in memory.
func (c *Catalog) AddViews(ctx context.Context, id string, delta int64) (int64, error) {
	n, err := c.repo.AddViews(ctx, id, delta)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	if loc, ok := c.byID[id]; ok {
		loc.Views = n
	}
	c.mu.Unlock()
	return n, nil
}

// NotifyUnlocked pushes an unlock event for subscribers. No persistence is
// involved; grants live in the purchase store.
func (c *Catalog) NotifyUnlocked(locationID string) {
	if c.bus == nil {
		return
	}
	c.bus.Broadcast(&events.Event{
		Type:       events.TypeLocationUnlocked,
		LocationID: locationID,
	})
}

func sortByPublishDateDesc(locs []*location.Location) {
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
