package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a direct-message thread between participants.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is a conversation with the extra fields the inbox list
// needs (participants and the caller's unread count).
type ConversationSummary struct {
	Conversation
	Participants []uuid.UUID `json:"participants"`
	UnreadCount  int         `json:"unread_count"`
}
