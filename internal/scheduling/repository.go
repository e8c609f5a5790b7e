package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/apperr"
)

const reservationColumns = `id, session_id, user_id, status, created_at, updated_at`

// uniqueViolation is the Postgres error code raised when the partial unique
// index rejects a second active reservation for the same user and session.
const uniqueViolation = "23505"

// Repository is the pgx-backed ReservationStore. Confirmed writes run inside
// a transaction that locks the session row before re-counting, which is the
// serialization guarantee the engine's check-then-act logic relies on under
// concurrent requests for the last seat.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a reservation repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanReservation(row pgx.Row) (*models.Reservation, error) {
	var r models.Reservation
	err := row.Scan(&r.ID, &r.SessionID, &r.UserID, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetByID returns a reservation by ID, or nil when it does not exist.
func (s *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	r, err := scanReservation(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// FindActive returns the user's non-cancelled reservation for the session,
// or nil when there is none.
func (s *Repository) FindActive(ctx context.Context, userID, sessionID uuid.UUID) (*models.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
		WHERE user_id = $1 AND session_id = $2 AND status <> 'cancelled'`
	r, err := scanReservation(s.pool.QueryRow(ctx, q, userID, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// CountConfirmed returns the number of confirmed reservations for a session.
func (s *Repository) CountConfirmed(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM reservations WHERE session_id = $1 AND status = 'confirmed'`,
		sessionID).Scan(&count)
	return count, err
}

// ConfirmedSessions returns the sessions of the user's confirmed
// reservations, in start-time order.
func (s *Repository) ConfirmedSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	const q = `SELECT s.id, s.title, s.description, s.category, s.starts_at, s.ends_at, s.capacity, s.status, s.created_by, s.created_at, s.updated_at
		FROM sessions s
		JOIN reservations r ON r.session_id = s.id
		WHERE r.user_id = $1 AND r.status = 'confirmed'
		ORDER BY s.starts_at ASC`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Session
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Description, &sess.Category, &sess.StartsAt, &sess.EndsAt, &sess.Capacity, &sess.Status, &sess.CreatedBy, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, sess)
	}
	return list, rows.Err()
}

// ListByUser returns all of the user's reservations, newest first.
func (s *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Reservation
	for rows.Next() {
		var r models.Reservation
		if err := rows.Scan(&r.ID, &r.SessionID, &r.UserID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// lockAndCheckCapacity takes a row lock on the session and re-counts
// confirmed reservations inside the transaction. A concurrent confirm for
// the last seat blocks here until the winner commits, then sees the real
// count and loses cleanly.
func lockAndCheckCapacity(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID) error {
	var capacity *int
	err := tx.QueryRow(ctx, `SELECT capacity FROM sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&capacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.KindNotFound, "session not found")
	}
	if err != nil {
		return err
	}
	if capacity == nil {
		return nil
	}
	var count int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM reservations WHERE session_id = $1 AND status = 'confirmed'`,
		sessionID).Scan(&count)
	if err != nil {
		return err
	}
	if count >= *capacity {
		return apperr.New(apperr.KindCapacityExceeded, "session is full")
	}
	return nil
}

// Create inserts a reservation. Confirmed inserts are serialized against the
// capacity count; the partial unique index backstops the duplicate rule.
func (s *Repository) Create(ctx context.Context, r *models.Reservation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if r.Status == models.ReservationConfirmed {
		if err := lockAndCheckCapacity(ctx, tx, r.SessionID); err != nil {
			return err
		}
	}
	const q = `INSERT INTO reservations (id, session_id, user_id, status)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, q, r.SessionID, r.UserID, r.Status).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperr.New(apperr.KindAlreadyReserved, "reservation already exists for this session")
		}
		return err
	}
	return tx.Commit(ctx)
}

// UpdateStatus transitions a reservation. Entry into confirmed takes the same
// session row lock as Create. Returns nil when the reservation is gone.
func (s *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ReservationStatus) (*models.Reservation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if status == models.ReservationConfirmed {
		var sessionID uuid.UUID
		var current models.ReservationStatus
		err := tx.QueryRow(ctx, `SELECT session_id, status FROM reservations WHERE id = $1`, id).Scan(&sessionID, &current)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if current != models.ReservationConfirmed {
			if err := lockAndCheckCapacity(ctx, tx, sessionID); err != nil {
				return nil, err
			}
		}
	}
	const q = `UPDATE reservations SET status = $2, updated_at = NOW() WHERE id = $1
		RETURNING ` + reservationColumns
	r, err := scanReservation(tx.QueryRow(ctx, q, id, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a reservation.
func (s *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	return err
}
