// Package chat implements the message relay and its persistence: validating
// senders against conversation membership, persisting messages, and fanning
// events out to broadcast groups and personal notification channels.
package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/apperr"
)

// Messaging event names. The gateway and REST handlers reuse these; the
// transport layer is the only place that decodes inbound event strings.
const (
	EventNewMessage          = "new_message"
	EventMessageNotification = "message_notification"
	EventMessagesRead        = "messages_read"
	EventUserTyping          = "user_typing"
	EventUserStoppedTyping   = "user_stopped_typing"
)

// MessageStore persists messages. Insert surfaces the persistence-side rate
// limiter as a RateLimited domain error; the relay never retries it.
type MessageStore interface {
	Insert(ctx context.Context, m *models.Message) error
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) (int, error)
}

// MembershipStore answers conversation membership questions. Membership rows
// are created by the conversation endpoints, not by the relay.
type MembershipStore interface {
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	Participants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
}

// Broadcaster fans an event out to a conversation's broadcast group.
type Broadcaster interface {
	FanOut(conversationID uuid.UUID, event string, payload interface{})
}

// Presence answers online queries and addresses a user's personal channel.
type Presence interface {
	IsOnline(userID uuid.UUID) bool
	SendToUser(userID uuid.UUID, event string, payload interface{})
}

// Relay validates, persists, and fans out messaging events. It is stateless;
// all shared state lives in the router, registry, and stores it is handed.
type Relay struct {
	messages MessageStore
	members  MembershipStore
	groups   Broadcaster
	presence Presence
	logger   *zap.Logger
}

// NewRelay creates a message relay.
func NewRelay(messages MessageStore, members MembershipStore, groups Broadcaster, presence Presence, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		messages: messages,
		members:  members,
		groups:   groups,
		presence: presence,
		logger:   logger,
	}
}

func (r *Relay) requireParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	ok, err := r.members.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.KindUnauthorized, "not a conversation participant")
	}
	return nil
}

// notificationPayload is the out-of-room "new message" ping sent to a
// participant's personal channel, so users hear about a conversation before
// joining its group.
type notificationPayload struct {
	ConversationID uuid.UUID       `json:"conversation_id"`
	Message        *models.Message `json:"message"`
}

// Send persists a message and fans it out: the conversation group gets
// new_message; every other online participant additionally gets a personal
// message_notification. The sender never receives a notification for their
// own message.
func (r *Relay) Send(ctx context.Context, senderID, conversationID uuid.UUID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.New(apperr.KindValidation, "message content is empty")
	}
	if err := r.requireParticipant(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	if err := r.messages.Insert(ctx, msg); err != nil {
		return nil, err
	}

	r.groups.FanOut(conversationID, EventNewMessage, msg)

	participants, err := r.members.Participants(ctx, conversationID)
	if err != nil {
		// The message is persisted and broadcast; a failed participant
		// lookup only costs the personal notifications.
		r.logger.Warn("participants lookup failed after send",
			zap.Error(err), zap.String("conversation_id", conversationID.String()))
		return msg, nil
	}
	payload := notificationPayload{ConversationID: conversationID, Message: msg}
	for _, p := range participants {
		if p == senderID {
			continue
		}
		if r.presence.IsOnline(p) {
			r.presence.SendToUser(p, EventMessageNotification, payload)
		}
	}
	return msg, nil
}

// readReceiptPayload names the reader in the messages_read broadcast.
type readReceiptPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	ReadBy         uuid.UUID `json:"read_by"`
}

// MarkRead flips every unread message in the conversation not authored by the
// reader, then broadcasts one read receipt naming the reader.
func (r *Relay) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) (int, error) {
	if err := r.requireParticipant(ctx, conversationID, readerID); err != nil {
		return 0, err
	}
	updated, err := r.messages.MarkRead(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	r.groups.FanOut(conversationID, EventMessagesRead, readReceiptPayload{
		ConversationID: conversationID,
		ReadBy:         readerID,
	})
	return updated, nil
}

// typingPayload identifies who is typing where.
type typingPayload struct {
	UserID         uuid.UUID `json:"user_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

// TypingStart fans out a typing indicator. No persistence and no auth
// re-check: group membership was gated at join time.
func (r *Relay) TypingStart(conversationID, userID uuid.UUID) {
	r.groups.FanOut(conversationID, EventUserTyping, typingPayload{UserID: userID, ConversationID: conversationID})
}

// TypingStop fans out the end of a typing indicator.
func (r *Relay) TypingStop(conversationID, userID uuid.UUID) {
	r.groups.FanOut(conversationID, EventUserStoppedTyping, typingPayload{UserID: userID, ConversationID: conversationID})
}
