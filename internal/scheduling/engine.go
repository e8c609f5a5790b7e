// Package scheduling implements the reservation engine: seat claims on timed
// sessions with capacity limits, duplicate detection, and time-overlap
// conflict resolution.
package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/apperr"
)

// SessionCatalog provides read access to session records. Returns (nil, nil)
// when the session does not exist.
type SessionCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// ReservationStore is the durable store of reservations. Create and
// UpdateStatus must serialize confirmed writes against the capacity count
// (the pgx implementation locks the session row); the engine's own checks
// alone cannot prevent overselling across processes.
type ReservationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindActive(ctx context.Context, userID, sessionID uuid.UUID) (*models.Reservation, error)
	CountConfirmed(ctx context.Context, sessionID uuid.UUID) (int, error)
	ConfirmedSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error)
	Create(ctx context.Context, r *models.Reservation) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ReservationStatus) (*models.Reservation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Conflict describes one session colliding with a requested reservation.
type Conflict struct {
	SessionID uuid.UUID `json:"session_id"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
}

// ConflictReport is the result of a read-only conflict preview.
type ConflictReport struct {
	HasConflicts bool       `json:"has_conflicts"`
	Conflicts    []Conflict `json:"conflicts"`
}

// Engine enforces the reservation invariants. It is stateless; every call is
// an independent check-then-act against the catalog and store.
type Engine struct {
	catalog SessionCatalog
	store   ReservationStore
	logger  *zap.Logger
}

// NewEngine creates a scheduling engine.
func NewEngine(catalog SessionCatalog, store ReservationStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{catalog: catalog, store: store, logger: logger}
}

// overlapExempt reports whether the two categories form the documented
// showcase/demo pairing that is allowed to time-overlap.
func overlapExempt(a, b models.SessionCategory) bool {
	x := strings.ToLower(string(a))
	y := strings.ToLower(string(b))
	return (x == string(models.CategoryShowcase) && y == string(models.CategoryDemo)) ||
		(x == string(models.CategoryDemo) && y == string(models.CategoryShowcase))
}

// findConflicts returns the user's confirmed sessions that overlap candidate,
// in start-time order, skipping the candidate itself and exempt pairings.
func (e *Engine) findConflicts(ctx context.Context, userID uuid.UUID, candidate *models.Session) ([]Conflict, error) {
	confirmed, err := e.store.ConfirmedSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	var conflicts []Conflict
	for i := range confirmed {
		other := &confirmed[i]
		if other.ID == candidate.ID {
			continue
		}
		if !candidate.Overlaps(other) {
			continue
		}
		if overlapExempt(candidate.Category, other.Category) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			SessionID: other.ID,
			Title:     other.Title,
			StartsAt:  other.StartsAt,
			EndsAt:    other.EndsAt,
		})
	}
	return conflicts, nil
}

// confirmChecks runs the capacity and overlap gates for entry into confirmed
// status. Failures are deterministic and never retried here.
func (e *Engine) confirmChecks(ctx context.Context, userID uuid.UUID, session *models.Session) error {
	if session.Capacity != nil {
		count, err := e.store.CountConfirmed(ctx, session.ID)
		if err != nil {
			return err
		}
		if count >= *session.Capacity {
			return apperr.New(apperr.KindCapacityExceeded, "session is full")
		}
	}
	conflicts, err := e.findConflicts(ctx, userID, session)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return apperr.New(apperr.KindScheduleConflict, "reservation overlaps an existing session").
			WithDetail(conflicts[0].Title)
	}
	return nil
}

// CreateReservation reserves a seat for the user in the session. Confirmed
// reservations pass the capacity and overlap gates; waitlisted ones do not.
func (e *Engine) CreateReservation(ctx context.Context, userID, sessionID uuid.UUID, desired models.ReservationStatus) (*models.Reservation, error) {
	if desired != models.ReservationConfirmed && desired != models.ReservationWaitlisted {
		return nil, apperr.Newf(apperr.KindValidation, "cannot create reservation with status %q", desired)
	}
	session, err := e.catalog.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.New(apperr.KindNotFound, "session not found")
	}
	existing, err := e.store.FindActive(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.New(apperr.KindAlreadyReserved, "reservation already exists for this session")
	}
	if desired == models.ReservationConfirmed {
		if err := e.confirmChecks(ctx, userID, session); err != nil {
			return nil, err
		}
	}
	r := &models.Reservation{
		SessionID: sessionID,
		UserID:    userID,
		Status:    desired,
	}
	if err := e.store.Create(ctx, r); err != nil {
		return nil, err
	}
	e.logger.Info("reservation created",
		zap.String("reservation_id", r.ID.String()),
		zap.String("session_id", sessionID.String()),
		zap.String("user_id", userID.String()),
		zap.String("status", string(desired)))
	return r, nil
}

// UpdateReservation transitions a reservation the caller owns. Only entry
// into confirmed re-runs the capacity and overlap gates; every other
// transition is unconditional.
func (e *Engine) UpdateReservation(ctx context.Context, userID, reservationID uuid.UUID, newStatus models.ReservationStatus) (*models.Reservation, error) {
	if !models.ValidReservationStatus(string(newStatus)) {
		return nil, apperr.Newf(apperr.KindValidation, "unknown reservation status %q", newStatus)
	}
	r, err := e.store.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.New(apperr.KindNotFound, "reservation not found")
	}
	if r.UserID != userID {
		return nil, apperr.New(apperr.KindUnauthorized, "reservation belongs to another user")
	}
	if newStatus == models.ReservationConfirmed && r.Status != models.ReservationConfirmed {
		session, err := e.catalog.GetByID(ctx, r.SessionID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, apperr.New(apperr.KindNotFound, "session not found")
		}
		if err := e.confirmChecks(ctx, userID, session); err != nil {
			return nil, err
		}
	}
	updated, err := e.store.UpdateStatus(ctx, reservationID, newStatus)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.New(apperr.KindNotFound, "reservation not found")
	}
	return updated, nil
}

// DeleteReservation removes a reservation the caller owns. Freeing a seat can
// never create a conflict, so no capacity or overlap re-check runs.
func (e *Engine) DeleteReservation(ctx context.Context, userID, reservationID uuid.UUID) error {
	r, err := e.store.GetByID(ctx, reservationID)
	if err != nil {
		return err
	}
	if r == nil {
		return apperr.New(apperr.KindNotFound, "reservation not found")
	}
	if r.UserID != userID {
		return apperr.New(apperr.KindUnauthorized, "reservation belongs to another user")
	}
	return e.store.Delete(ctx, reservationID)
}

// ListReservations returns the user's reservations.
func (e *Engine) ListReservations(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	return e.store.ListByUser(ctx, userID)
}

// CheckConflicts previews what a confirmed reservation for the session would
// collide with, without persisting anything.
func (e *Engine) CheckConflicts(ctx context.Context, userID, sessionID uuid.UUID) (*ConflictReport, error) {
	session, err := e.catalog.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.New(apperr.KindNotFound, "session not found")
	}
	conflicts, err := e.findConflicts(ctx, userID, session)
	if err != nil {
		return nil, err
	}
	return &ConflictReport{HasConflicts: len(conflicts) > 0, Conflicts: conflicts}, nil
}
