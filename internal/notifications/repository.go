// Package notifications records outbound notification emails. Delivery runs
// through an external mail provider; the worker logs intent and outcome here.
package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-events/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an email log row.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (id, reservation_id, email_type, recipient_email, subject, status, sent_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, el.ReservationID, el.EmailType, el.RecipientEmail, el.Subject, el.Status, el.SentAt).
		Scan(&el.ID, &el.CreatedAt)
}

// ListByReservation returns email logs for a reservation, newest first.
func (r *Repository) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.EmailLog, error) {
	const q = `SELECT id, reservation_id, email_type, recipient_email, subject, status, sent_at, created_at
		FROM email_logs
		WHERE reservation_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.ReservationID, &el.EmailType, &el.RecipientEmail, &el.Subject, &el.Status, &el.SentAt, &el.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, el)
	}
	return list, rows.Err()
}
