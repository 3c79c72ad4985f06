package location

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nabeul-archive/poemap/internal/tracing"
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

const locationColumns = `
	id, name, lat, lng, description, poet, preview, full_poem, price,
	audio_url, mural_url, mural_type, poet_image_url, thumbnail_url,
	drive_file_id, is_user_submitted, user_id, publish_date, views
`

// Insert stores a new location. A missing ID is assigned.
func (r *PostgresRepository) Insert(ctx context.Context, loc *Location) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "locations", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}
	if loc.PublishDate == nil {
		now := time.Now()
		loc.PublishDate = &now
	}

	query := `
		INSERT INTO locations (` + locationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = r.db.ExecContext(ctx, query,
		loc.ID, loc.Name, loc.Lat, loc.Lng, loc.Description, loc.Poet,
		loc.Preview, loc.FullPoem, loc.Price,
		loc.AudioURL, loc.MuralURL, loc.MuralType, loc.PoetImageURL,
		loc.ThumbnailURL, loc.DriveFileID, loc.IsUserSubmitted,
		nullableString(loc.UserID), loc.PublishDate, loc.Views,
	)
	if err != nil {
		return fmt.Errorf("failed to insert location: %w", err)
	}
	return nil
}

// Update modifies an existing location keyed by ID.
func (r *PostgresRepository) Update(ctx context.Context, loc *Location) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "locations", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	query := `
		UPDATE locations SET
			name = $2, lat = $3, lng = $4, description = $5, poet = $6,
			preview = $7, full_poem = $8, price = $9, audio_url = $10,
			mural_url = $11, mural_type = $12, poet_image_url = $13,
			thumbnail_url = $14, drive_file_id = $15, is_user_submitted = $16,
			user_id = $17, publish_date = $18
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		loc.ID, loc.Name, loc.Lat, loc.Lng, loc.Description, loc.Poet,
		loc.Preview, loc.FullPoem, loc.Price,
		loc.AudioURL, loc.MuralURL, loc.MuralType, loc.PoetImageURL,
		loc.ThumbnailURL, loc.DriveFileID, loc.IsUserSubmitted,
		nullableString(loc.UserID), loc.PublishDate,
	)
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return ErrLocationNotFound
	}
	return nil
}

// GetByID retrieves a location by its ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (loc *Location, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "locations", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`
	loc, err = scanLocation(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return loc, nil
}

// List returns all locations ordered by publish date descending.
func (r *PostgresRepository) List(ctx context.Context) (locs []*Location, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "locations", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + locationColumns + ` FROM locations ORDER BY publish_date DESC NULLS LAST, id`
	return r.queryLocations(ctx, query)
}

// ListByUser returns locations submitted by the given user.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE user_id = $1 ORDER BY publish_date DESC NULLS LAST, id`
	return r.queryLocations(ctx, query, userID)
}

// Delete removes a location by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "locations", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if rows == 0 {
		return ErrLocationNotFound
	}
	return nil
}

// AddViews adds delta to the view counter and returns the new count.
func (r *PostgresRepository) AddViews(ctx context.Context, id string, delta int64) (int64, error) {
	var views int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE locations SET views = views + $2 WHERE id = $1 RETURNING views`, id, delta,
	).Scan(&views)
	if err == sql.ErrNoRows {
		return 0, ErrLocationNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment views: %w", err)
	}
	return views, nil
}

func (r *PostgresRepository) queryLocations(ctx context.Context, query string, args ...any) ([]*Location, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var out []*Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locations: %w", err)
	}
	return out, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*Location, error) {
	var loc Location
	var userID sql.NullString
	var publishDate sql.NullTime
	err := row.Scan(
		&loc.ID, &loc.Name, &loc.Lat, &loc.Lng, &loc.Description, &loc.Poet,
		&loc.Preview, &loc.FullPoem, &loc.Price,
		&loc.AudioURL, &loc.MuralURL, &loc.MuralType, &loc.PoetImageURL,
		&loc.ThumbnailURL, &loc.DriveFileID, &loc.IsUserSubmitted,
		&userID, &publishDate, &loc.Views,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		loc.UserID = userID.String
	}
	if publishDate.Valid {
		t := publishDate.Time
		loc.PublishDate = &t
	}
	return &loc, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
