package profile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrCreate fetches the profile, lazily creating it with defaults.
// The upsert keeps concurrent first fetches race-free.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, id string) (*Profile, error) {
	query := `
		INSERT INTO profiles (id, role, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET id = profiles.id
		RETURNING id, role, balance, COALESCE(name, ''), COALESCE(bio, '')
	`
	var p Profile
	err := r.db.QueryRowContext(ctx, query, id, DefaultRole, DefaultBalance).
		Scan(&p.ID, &p.Role, &p.Balance, &p.Name, &p.Bio)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create profile: %w", err)
	}
	return &p, nil
}

// GetByID fetches an existing profile.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	query := `
		SELECT id, role, balance, COALESCE(name, ''), COALESCE(bio, '')
		FROM profiles WHERE id = $1
	`
	var p Profile
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.Role, &p.Balance, &p.Name, &p.Bio)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// UpdateDisplay applies name/bio changes and returns the updated row.
func (r *PostgresRepository) UpdateDisplay(ctx context.Context, id string, upd ProfileUpdate) (*Profile, error) {
	query := `
		UPDATE profiles SET
			name = COALESCE($2, name),
			bio = COALESCE($3, bio)
		WHERE id = $1
		RETURNING id, role, balance, COALESCE(name, ''), COALESCE(bio, '')
	`
	var p Profile
	err := r.db.QueryRowContext(ctx, query, id, upd.Name, upd.Bio).
		Scan(&p.ID, &p.Role, &p.Balance, &p.Name, &p.Bio)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return &p, nil
}

// Credit adds amount to the balance and returns the new balance.
func (r *PostgresRepository) Credit(ctx context.Context, id string, amount int64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE profiles SET balance = balance + $2 WHERE id = $1 RETURNING balance`,
		id, amount,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrProfileNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to credit balance: %w", err)
	}
	return balance, nil
}

// Debit subtracts amount from the balance and returns the new balance.
// The guard clause keeps the balance from ever going negative.
func (r *PostgresRepository) Debit(ctx context.Context, id string, amount int64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE profiles SET balance = balance - $2 WHERE id = $1 AND balance >= $2 RETURNING balance`,
		id, amount,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		// Distinguish a missing row from an insufficient balance.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return 0, getErr
		}
		return 0, ErrInsufficientBalance
	}
	if err != nil {
		return 0, fmt.Errorf("failed to debit balance: %w", err)
	}
	return balance, nil
}
