package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's role in the platform. Credential issuance lives
// outside this service; roles arrive via verified JWT claims.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAttendee Role = "attendee"
)

// User is a platform account. Account lifecycle (signup, password reset) is
// owned elsewhere; this service only references users by id.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
