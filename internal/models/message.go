package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is one chat message in a conversation. Read is flipped by the
// recipient's read-receipt action, never by the sender.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}
