package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func wireMessage(event, data string) WSMessage {
	return WSMessage{Event: event, Data: json.RawMessage(data)}
}

func TestDecodeInbound_SendMessage(t *testing.T) {
	conv := uuid.New()
	msg := wireMessage("send_message", `{"conversation_id":"`+conv.String()+`","content":"hi there"}`)

	ev, err := decodeInbound(msg)
	require.NoError(t, err)
	send, ok := ev.(sendMessageEvent)
	require.True(t, ok)
	require.Equal(t, conv, send.ConversationID)
	require.Equal(t, "hi there", send.Content)
}

func TestDecodeInbound_ConversationEvents(t *testing.T) {
	conv := uuid.New()
	data := `{"conversation_id":"` + conv.String() + `"}`

	cases := []struct {
		event string
		want  inboundEvent
	}{
		{"join_conversation", joinConversationEvent{ConversationID: conv}},
		{"leave_conversation", leaveConversationEvent{ConversationID: conv}},
		{"typing_start", typingStartEvent{ConversationID: conv}},
		{"typing_stop", typingStopEvent{ConversationID: conv}},
		{"mark_as_read", markAsReadEvent{ConversationID: conv}},
	}
	for _, tc := range cases {
		t.Run(tc.event, func(t *testing.T) {
			ev, err := decodeInbound(wireMessage(tc.event, data))
			require.NoError(t, err)
			require.Equal(t, tc.want, ev)
		})
	}
}

func TestDecodeInbound_CheckOnlineStatus(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	msg := wireMessage("check_online_status", `{"user_ids":["`+a.String()+`","`+b.String()+`"]}`)

	ev, err := decodeInbound(msg)
	require.NoError(t, err)
	check, ok := ev.(checkOnlineStatusEvent)
	require.True(t, ok)
	require.Equal(t, []uuid.UUID{a, b}, check.UserIDs)
}

func TestDecodeInbound_UnknownEvent(t *testing.T) {
	_, err := decodeInbound(wireMessage("start_stream", `{}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "start_stream")
}

func TestDecodeInbound_MalformedPayload(t *testing.T) {
	_, err := decodeInbound(wireMessage("send_message", `{"conversation_id":"not-a-uuid"`))
	require.Error(t, err)
}
