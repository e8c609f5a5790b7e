package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-events/backend/internal/models"
)

const sessionColumns = `id, title, description, category, starts_at, ends_at, capacity, status, created_by, created_at, updated_at`

// Repository handles session persistence. The scheduling engine consumes it
// read-only; mutation belongs to the admin endpoints.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.Category, &s.StartsAt, &s.EndsAt, &s.Capacity, &s.Status, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID returns a session by ID, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	s, err := scanSession(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// List returns sessions, optionally only those ending after the given instant.
func (r *Repository) List(ctx context.Context, endingAfter *time.Time) ([]models.Session, error) {
	base := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []interface{}
	if endingAfter != nil {
		base += ` WHERE ends_at > $1`
		args = append(args, *endingAfter)
	}
	rows, err := r.pool.Query(ctx, base+` ORDER BY starts_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.Category, &s.StartsAt, &s.EndsAt, &s.Capacity, &s.Status, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Create inserts a new session.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	const q = `INSERT INTO sessions (id, title, description, category, starts_at, ends_at, capacity, status, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.Title, s.Description, s.Category, s.StartsAt, s.EndsAt, s.Capacity, s.Status, s.CreatedBy).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// UpdateStatus sets the lifecycle status of a session.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) (*models.Session, error) {
	const q = `UPDATE sessions SET status = $2, updated_at = NOW() WHERE id = $1
		RETURNING ` + sessionColumns
	s, err := scanSession(r.pool.QueryRow(ctx, q, id, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// Delete removes a session. Reservations cascade at the database level.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
