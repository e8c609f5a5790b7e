package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a session. Status is owned by the
// admin layer; the scheduling engine only reads it.
type SessionStatus string

const (
	SessionScheduled  SessionStatus = "scheduled"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
)

// SessionCategory classifies a session for scheduling rules. The showcase and
// demo categories form the overlap-exempt pairing: a user may hold confirmed
// reservations for a showcase and a demo that run at the same time.
type SessionCategory string

const (
	CategoryWorkshop   SessionCategory = "workshop"
	CategoryTalk       SessionCategory = "talk"
	CategoryPanel      SessionCategory = "panel"
	CategoryShowcase   SessionCategory = "showcase"
	CategoryDemo       SessionCategory = "demo"
	CategoryNetworking SessionCategory = "networking"
)

// ValidSessionCategory reports whether s is a known category value.
func ValidSessionCategory(s string) bool {
	switch SessionCategory(s) {
	case CategoryWorkshop, CategoryTalk, CategoryPanel, CategoryShowcase, CategoryDemo, CategoryNetworking:
		return true
	}
	return false
}

// ValidSessionStatus reports whether s is a known status value.
func ValidSessionStatus(s string) bool {
	switch SessionStatus(s) {
	case SessionScheduled, SessionInProgress, SessionCompleted, SessionCancelled:
		return true
	}
	return false
}

// Session is a timed event slot attendees reserve seats in.
// Capacity nil means unlimited.
type Session struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    SessionCategory `json:"category"`
	StartsAt    time.Time       `json:"starts_at"`
	EndsAt      time.Time       `json:"ends_at"`
	Capacity    *int            `json:"capacity,omitempty"`
	Status      SessionStatus   `json:"status"`
	CreatedBy   uuid.UUID       `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Overlaps reports whether the two sessions' time windows intersect.
// Boundaries are exclusive: a session ending exactly when another starts is a
// back-to-back schedule, not an overlap.
func (s *Session) Overlaps(other *Session) bool {
	return s.StartsAt.Before(other.EndsAt) && other.StartsAt.Before(s.EndsAt)
}
