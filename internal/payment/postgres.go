package payment

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresTopUpRepository implements TopUpRepository using PostgreSQL.
type PostgresTopUpRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTopUpRepository creates a new PostgresTopUpRepository.
func NewPostgresTopUpRepository(db *sql.DB, logger *slog.Logger) *PostgresTopUpRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTopUpRepository{db: db, logger: logger}
}

// Insert adds a new top-up record.
func (r *PostgresTopUpRepository) Insert(record *TopUpRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	now := time.Now()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}

	_, err := r.db.Exec(`
		INSERT INTO topups (id, session_id, status, pack_id, coins, amount_cents, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID, record.SessionID, record.Status, record.PackID,
		record.Coins, record.Amount, record.UserID, record.CreatedAt, record.UpdatedAt)
	return err
}

// GetByID retrieves a top-up record by ID.
func (r *PostgresTopUpRepository) GetByID(id string) (*TopUpRecord, error) {
	return r.scanOne(`
		SELECT id, session_id, status, pack_id, coins, amount_cents, user_id, created_at, updated_at
		FROM topups WHERE id = $1`, id)
}

// GetBySessionID retrieves a top-up record by Checkout Session ID.
func (r *PostgresTopUpRepository) GetBySessionID(sessionID string) (*TopUpRecord, error) {
	return r.scanOne(`
		SELECT id, session_id, status, pack_id, coins, amount_cents, user_id, created_at, updated_at
		FROM topups WHERE session_id = $1`, sessionID)
}

// Update updates an existing top-up record.
func (r *PostgresTopUpRepository) Update(record *TopUpRecord) error {
	now := time.Now()
	record.UpdatedAt = &now

	res, err := r.db.Exec(`
		UPDATE topups SET status = $2, updated_at = $3 WHERE id = $1`,
		record.ID, record.Status, record.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *PostgresTopUpRepository) scanOne(query string, arg any) (*TopUpRecord, error) {
	var rec TopUpRecord
	err := r.db.QueryRow(query, arg).Scan(
		&rec.ID, &rec.SessionID, &rec.Status, &rec.PackID,
		&rec.Coins, &rec.Amount, &rec.UserID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PostgresWebhookRepository implements WebhookRepository using PostgreSQL.
// The primary key on event_id gives cross-instance idempotency: whichever
// replica records the event first wins, the rest see the duplicate.
type PostgresWebhookRepository struct {
	db *sql.DB
}

// NewPostgresWebhookRepository creates a new PostgresWebhookRepository.
func NewPostgresWebhookRepository(db *sql.DB) *PostgresWebhookRepository {
	return &PostgresWebhookRepository{db: db}
}

// RecordEvent records a webhook event as processed.
// Returns ErrEventAlreadyProcessed if the event was already recorded.
func (r *PostgresWebhookRepository) RecordEvent(eventID, eventType string) error {
	_, err := r.db.Exec(`
		INSERT INTO webhook_events (event_id, event_type, processed_at)
		VALUES ($1, $2, NOW())`,
		eventID, eventType)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrEventAlreadyProcessed
		}
		return err
	}
	return nil
}

// Remove drops a recorded event so a delivery retry can reprocess it.
func (r *PostgresWebhookRepository) Remove(eventID string) error {
	_, err := r.db.Exec(`DELETE FROM webhook_events WHERE event_id = $1`, eventID)
	return err
}

// HasProcessed checks if an event has already been processed.
func (r *PostgresWebhookRepository) HasProcessed(eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM webhook_events WHERE event_id = $1)`,
		eventID).Scan(&exists)
	return exists, err
}
