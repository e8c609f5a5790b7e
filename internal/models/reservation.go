package models

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the state of a seat claim.
// Any status can transition to any other. Entry into confirmed is
// gated by capacity and overlap checks; all other transitions are
// unconditional given ownership.
type ReservationStatus string

const (
	ReservationConfirmed  ReservationStatus = "confirmed"
	ReservationWaitlisted ReservationStatus = "waitlisted"
	ReservationCancelled  ReservationStatus = "cancelled"
)

// ValidReservationStatus reports whether s is a known status value.
func ValidReservationStatus(s string) bool {
	switch ReservationStatus(s) {
	case ReservationConfirmed, ReservationWaitlisted, ReservationCancelled:
		return true
	}
	return false
}

// Reservation is a user's claim on a seat in a session.
type Reservation struct {
	ID        uuid.UUID         `json:"id"`
	SessionID uuid.UUID         `json:"session_id"`
	UserID    uuid.UUID         `json:"user_id"`
	Status    ReservationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Active reports whether the reservation still claims or queues for a seat.
func (r *Reservation) Active() bool {
	return r.Status != ReservationCancelled
}
