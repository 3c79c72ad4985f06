package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nabeul-archive/poemap/internal/location"
)

// snapshotKey holds the CBOR-encoded catalog in Redis.
const snapshotKey = "catalog:snapshot"

// DefaultSnapshotTTL bounds how stale a cached catalog may get.
const DefaultSnapshotTTL = 24 * time.Hour

// Cache persists catalog snapshots in Redis, CBOR-encoded. A snapshot is the
// warm-start source when the database is unreachable.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a snapshot cache. A zero ttl uses the default.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Cache{
		client: client,
		ttl:    ttl,
	}
}

// Save stores the catalog snapshot.
func (c *Cache) Save(ctx context.Context, locs []*location.Location) error {
	data, err := cbor.Marshal(locs)
	if err != nil {
		return fmt.Errorf("failed to encode catalog snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store catalog snapshot: %w", err)
	}
	return nil
}

// Load fetches the cached catalog. Returns redis.Nil via the wrapped error
// when no snapshot exists.
func (c *Cache) Load(ctx context.Context) ([]*location.Location, error) {
	data, err := c.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog snapshot: %w", err)
	}
	var locs []*location.Location
	if err := cbor.Unmarshal(data, &locs); err != nil {
		return nil, fmt.Errorf("failed to decode catalog snapshot: %w", err)
	}
	return locs, nil
}
