package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound events owned by the gateway. The messaging events themselves
// (new_message, messages_read, ...) are named in the chat package.
const (
	EventJoinedConversation = "joined_conversation"
	EventMessageSent        = "message_sent"
	EventMessageError       = "message_error"
	EventUserStatusChanged  = "user_status_changed"
	EventOnlineStatus       = "online_status"
)

// inboundEvent is the closed set of events a client may send. The string
// event name is decoded into a variant exactly once, in decodeInbound; the
// gateway dispatches on the concrete type.
type inboundEvent interface {
	isInbound()
}

type joinConversationEvent struct {
	ConversationID uuid.UUID
}

type leaveConversationEvent struct {
	ConversationID uuid.UUID
}

type sendMessageEvent struct {
	ConversationID uuid.UUID
	Content        string
}

type typingStartEvent struct {
	ConversationID uuid.UUID
}

type typingStopEvent struct {
	ConversationID uuid.UUID
}

type markAsReadEvent struct {
	ConversationID uuid.UUID
}

type checkOnlineStatusEvent struct {
	UserIDs []uuid.UUID
}

func (joinConversationEvent) isInbound()   {}
func (leaveConversationEvent) isInbound()  {}
func (sendMessageEvent) isInbound()        {}
func (typingStartEvent) isInbound()        {}
func (typingStopEvent) isInbound()         {}
func (markAsReadEvent) isInbound()         {}
func (checkOnlineStatusEvent) isInbound()  {}

type conversationPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type sendMessagePayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Content        string    `json:"content"`
}

type onlineStatusPayload struct {
	UserIDs []uuid.UUID `json:"user_ids"`
}

// decodeInbound maps a wire message to its typed variant. Unknown event names
// and malformed payloads are errors; the connection stays up and the caller
// answers with message_error.
func decodeInbound(msg WSMessage) (inboundEvent, error) {
	switch msg.Event {
	case "join_conversation":
		var p conversationPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, fmt.Errorf("join_conversation payload: %w", err)
		}
		return joinConversationEvent{ConversationID: p.ConversationID}, nil
	case "leave_conversation":
		var p conversationPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, fmt.Errorf("leave_conversation payload: %w", err)
		}
		return leaveConversationEvent{ConversationID: p.ConversationID}, nil
	case "send_message":
		var p sendMessagePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, fmt.Errorf("send_message payload: %w", err)
		}
		return sendMessageEvent{ConversationID: p.ConversationID, Content: p.Content}, nil
	case "typing_start":
		var p conversationPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, fmt.Errorf("typing_start payload: %w", err)
		}
		return typingStartEvent{ConversationID: p.ConversationID}, nil
	case "typing_stop":
		var p conversationPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, fmt.Errorf("typing_stop payload: %w", err)
		}
		return typingStopEvent{ConversationID: p.ConversationID}, nil
	case "mark_as_read":
		var p conversationPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, fmt.Errorf("mark_as_read payload: %w", err)
		}
		return markAsReadEvent{ConversationID: p.ConversationID}, nil
	case "check_online_status":
		var p onlineStatusPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, fmt.Errorf("check_online_status payload: %w", err)
		}
		return checkOnlineStatusEvent{UserIDs: p.UserIDs}, nil
	default:
		return nil, fmt.Errorf("unknown event %q", msg.Event)
	}
}
