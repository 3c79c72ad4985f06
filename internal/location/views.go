package location

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// viewKeyPrefix namespaces view counters in Redis.
const viewKeyPrefix = "views:location:"

// ViewCounter tracks location view counts. The primary path is a Redis
// atomic increment; when Redis is unavailable or not configured, it falls
// back to a direct read-modify-write against the repository. Increment
// failures are logged and swallowed: view counting is best-effort and must
// never break a detail view.
type ViewCounter struct {
	client *redis.Client // may be nil
	repo   Repository
	logger *slog.Logger
}

// NewViewCounter creates a ViewCounter. The Redis client may be nil, in
// which case every increment goes through the repository fallback.
func NewViewCounter(client *redis.Client, repo Repository, logger *slog.Logger) *ViewCounter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewCounter{
		client: client,
		repo:   repo,
		logger: logger,
	}
}

// Increment bumps the view counter for a location. Errors are logged,
// never returned: view counting is best-effort.
func (v *ViewCounter) Increment(ctx context.Context, id string) {
	if v.client != nil {
		err := v.client.Incr(ctx, viewKeyPrefix+id).Err()
		if err == nil {
			return
		}
		v.logger.Warn("redis view increment failed, falling back to repository",
			slog.String("location_id", id),
			slog.String("error", err.Error()))
	}

	if _, err := v.repo.AddViews(ctx, id, 1); err != nil {
		v.logger.Warn("view increment failed",
			slog.String("location_id", id),
			slog.String("error", err.Error()))
	}
}

// Flush copies Redis-side counters into the repository and clears them.
// Intended to run periodically so the durable store converges with the
// fast counter.
func (v *ViewCounter) Flush(ctx context.Context) error {
	if v.client == nil {
		return nil
	}

	iter := v.client.Scan(ctx, 0, viewKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id := key[len(viewKeyPrefix):]

		pending, err := v.client.GetDel(ctx, key).Int64()
		if err != nil {
			v.logger.Warn("failed to drain view counter",
				slog.String("key", key),
				slog.String("error", err.Error()))
			continue
		}
		if pending == 0 {
			continue
		}
		if _, err := v.repo.AddViews(ctx, id, pending); err != nil {
			v.logger.Warn("failed to persist drained views",
				slog.String("location_id", id),
				slog.String("error", err.Error()))
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan view counters: %w", err)
	}
	return nil
}
