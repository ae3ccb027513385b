package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"tutor_chat/internal/domain"
)

func TestMessageSentEvent(t *testing.T) {
	req := require.New(t)

	msg, err := domain.NewMessage("u1", "u2", "", &domain.Attachment{URL: "https://cdn/v.mp4", Kind: domain.AttachmentVideo}, time.Now())
	req.NoError(err)

	evt := MessageSent(msg)
	req.Equal(TypeMessageSent, evt.Type)
	req.Equal(msg.ConversationKey, evt.ConversationKey)
	req.Equal([]string{msg.ID}, evt.MessageIDs)
	req.Equal(domain.AttachmentVideo, evt.AttachmentKind)

	raw, err := json.Marshal(evt)
	req.NoError(err)
	req.Contains(string(raw), `"type":"message.sent"`)
	req.NotContains(string(raw), "https://cdn", "events never carry content")
}

func TestMessagesReadEvent(t *testing.T) {
	req := require.New(t)
	readAt := time.Now().UTC()

	evt := MessagesRead("u2", "u1", []*domain.Message{{ID: "m1"}, {ID: "m2"}}, readAt)
	req.Equal(domain.ResolveConversation("u1", "u2"), evt.ConversationKey)
	req.Equal("u2", evt.ActorID)
	req.Equal([]string{"m1", "m2"}, evt.MessageIDs)
	req.Equal(readAt, evt.OccurredAt)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	require.NoError(t, p.Publish(context.Background(), Event{Type: TypeMessageDeleted}))
	require.NoError(t, p.Close())
}
