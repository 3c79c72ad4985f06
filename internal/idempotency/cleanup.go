package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// DefaultExpiry is how long a record stays replayable before cleanup.
const DefaultExpiry = 24 * time.Hour

// CleanupOldKeys purges records older than maxAge and logs the result.
func CleanupOldKeys(repo Repository, maxAge time.Duration) (int64, error) {
	deleted, err := repo.DeleteOlderThan(maxAge)
	if err != nil {
		slog.Error("failed to clean up idempotency keys", "error", err)
		return 0, err
	}

	if deleted > 0 {
		slog.Info("cleaned up idempotency keys", "deleted", deleted, "older_than", maxAge)
	}

	return deleted, nil
}

// RunPeriodicCleanup purges expired records at the given interval until ctx
// is cancelled. It blocks, so run it in a goroutine. A cleanup also runs
// immediately on start.
func RunPeriodicCleanup(ctx context.Context, repo Repository, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := CleanupOldKeys(repo, maxAge); err != nil {
		slog.Error("initial idempotency cleanup failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if _, err := CleanupOldKeys(repo, maxAge); err != nil {
				slog.Error("periodic idempotency cleanup failed", "error", err)
			}
		case <-ctx.Done():
			slog.Info("stopping idempotency cleanup")
			return
		}
	}
}
