package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType for automation.
const (
	EmailTypeReservationConfirmation = "reservation_confirmation"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusLogged  = "logged"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records notification emails produced by the background worker.
// Actual delivery is an external concern; the worker records intent.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	ReservationID  *uuid.UUID `json:"reservation_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
