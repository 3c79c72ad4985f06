package purchase

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// PostgresGrantStore implements GrantStore using PostgreSQL with full
// transaction support: the balance debit and the grant row commit or roll
// back together.
type PostgresGrantStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresGrantStore creates a new PostgresGrantStore.
func NewPostgresGrantStore(db *sql.DB, logger *slog.Logger) *PostgresGrantStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresGrantStore{
		db:     db,
		logger: logger,
	}
}

// Grant debits price from the user's balance and records the unlock in a
// single transaction.
func (s *PostgresGrantStore) Grant(ctx context.Context, userID, locationID string, price int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Always attempt rollback on function exit (no-op after successful commit)
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			s.logger.Warn("failed to rollback purchase transaction",
				slog.String("error", err.Error()))
		}
	}()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM grants WHERE user_id = $1 AND location_id = $2)`,
		userID, locationID,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check existing grant: %w", err)
	}
	if exists {
		return 0, ErrAlreadyPurchased
	}

	var balance int64
	err = tx.QueryRowContext(ctx,
		`UPDATE profiles SET balance = balance - $2 WHERE id = $1 AND balance >= $2 RETURNING balance`,
		userID, price,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("failed to debit balance: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO grants (user_id, location_id, price_paid, purchased_at) VALUES ($1, $2, $3, NOW())`,
		userID, locationID, price,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record grant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit purchase: %w", err)
	}
	return balance, nil
}

// Has reports whether the user holds a grant for the location.
func (s *PostgresGrantStore) Has(ctx context.Context, userID, locationID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM grants WHERE user_id = $1 AND location_id = $2)`,
		userID, locationID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return exists, nil
}

// ListByUser returns all grants held by the user.
func (s *PostgresGrantStore) ListByUser(ctx context.Context, userID string) ([]*Grant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, location_id, price_paid, purchased_at FROM grants WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var out []*Grant
	for rows.Next() {
		var g Grant
		var at time.Time
		if err := rows.Scan(&g.UserID, &g.LocationID, &g.PricePaid, &at); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		g.PurchasedAt = &at
		out = append(out, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grants: %w", err)
	}
	return out, nil
}
