package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"tutor_chat/internal/domain"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (ts *testServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(ts.router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat?token=" + token(t, userID, domain.RoleLearner, "")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": event, "data": data}))
}

// expect читает фреймы, пока не придет событие с нужным именем
func expect(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", event)
		if f.Event == event {
			return f.Data
		}
	}
}

// expectNothing убеждается, что за короткое окно не пришло ни одного фрейма
func expectNothing(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var f frame
	err := conn.ReadJSON(&f)
	require.Error(t, err, "unexpected frame %s", f.Event)

	var netErr interface{ Timeout() bool }
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "expected read timeout, got %v", err)
}

func join(t *testing.T, conn *websocket.Conn, senderID, recipientID string) {
	t.Helper()
	send(t, conn, domain.EventJoinRoom, map[string]string{"senderId": senderID, "recipientId": recipientID})

	var joined domain.RoomJoinedPayload
	require.NoError(t, json.Unmarshal(expect(t, conn, domain.EventRoomJoined), &joined))
	require.Equal(t, domain.ResolveConversation(senderID, recipientID), joined.ConversationKey)
}

func TestWebSocketConversationFlow(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	learnerConn := ts.dial(t, "u1")
	instructorConn := ts.dial(t, "u2")
	join(t, learnerConn, "u1", "u2")
	join(t, instructorConn, "u2", "u1")

	send(t, learnerConn, domain.EventMessage, map[string]string{
		"senderId": "u1", "recipientId": "u2", "message": "hi", "timestamp": "2020-01-01T00:00:00Z",
	})

	var received domain.Message
	req.NoError(json.Unmarshal(expect(t, instructorConn, domain.EventReceiveMessage), &received))
	req.Equal("hi", received.Body)
	req.Equal("u1", received.SenderID)
	req.False(received.Read)
	req.True(received.Timestamp.After(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)), "server assigns timestamp")

	var echoed domain.Message
	req.NoError(json.Unmarshal(expect(t, learnerConn, domain.EventReceiveMessage), &echoed))
	req.Equal(received.ID, echoed.ID)

	send(t, instructorConn, domain.EventMessageRead, map[string]string{"senderId": "u2", "recipientId": "u1"})

	var read domain.MessageReadPayload
	req.NoError(json.Unmarshal(expect(t, learnerConn, domain.EventMessageRead), &read))
	req.Equal("u1", read.SenderID)
	req.Equal("u2", read.RecipientID)

	send(t, learnerConn, domain.EventDeleteMessage, map[string]string{"messageId": received.ID, "senderId": "u1"})

	var deleted domain.MessageDeletedPayload
	req.NoError(json.Unmarshal(expect(t, instructorConn, domain.EventMessageDeleted), &deleted))
	req.Equal(received.ID, deleted.MessageID)
}

func TestWebSocketNotifiesOutsideConversation(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	learnerConn := ts.dial(t, "u1")
	instructorConn := ts.dial(t, "u2")
	join(t, learnerConn, "u1", "u2")

	send(t, learnerConn, domain.EventMessage, map[string]string{
		"senderId": "u1", "recipientId": "u2", "message": "are you there?",
	})

	var note domain.NotificationPayload
	req.NoError(json.Unmarshal(expect(t, instructorConn, domain.EventNotification), &note))
	req.Equal("u1", note.SenderID)
	req.Equal("are you there?", note.Excerpt)
	req.Equal(domain.ResolveConversation("u1", "u2"), note.ConversationKey)
}

func TestWebSocketRejectsBadFrames(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "u1")

	cases := map[string]string{
		"bad json":          `{"event":`,
		"unknown event":     `{"event":"typing","data":{}}`,
		"missing data":      `{"event":"message"}`,
		"missing fields":    `{"event":"message","data":{"senderId":"u1"}}`,
		"bad file type":     `{"event":"message","data":{"senderId":"u1","recipientId":"u2","fileUrl":"https://x/y.pdf","fileType":"pdf"}}`,
		"self conversation": `{"event":"joinRoom","data":{"senderId":"u1","recipientId":"u1"}}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))

			var payload domain.ErrorPayload
			require.NoError(t, json.Unmarshal(expect(t, conn, domain.EventError), &payload))
			require.Equal(t, "validation", payload.Code)
		})
	}
}

func TestWebSocketRejectsImpersonation(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	learnerConn := ts.dial(t, "u1")
	instructorConn := ts.dial(t, "u2")
	join(t, instructorConn, "u2", "u3")

	send(t, learnerConn, domain.EventMessage, map[string]string{
		"senderId": "u3", "recipientId": "u2", "message": "spoofed",
	})

	var payload domain.ErrorPayload
	req.NoError(json.Unmarshal(expect(t, learnerConn, domain.EventError), &payload))
	req.Equal("forbidden", payload.Code)
	req.Equal(domain.EventMessage, payload.Event)
	expectNothing(t, instructorConn)
}

func TestWebSocketRateLimitsSends(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	conn := ts.dial(t, "u1")
	join(t, conn, "u1", "u2")

	for i := 0; i < testChatConfig.SendRatePerMinute; i++ {
		send(t, conn, domain.EventMessage, map[string]string{"senderId": "u1", "recipientId": "u2", "message": "spam"})
		expect(t, conn, domain.EventReceiveMessage)
	}

	send(t, conn, domain.EventMessage, map[string]string{"senderId": "u1", "recipientId": "u2", "message": "spam"})
	var payload domain.ErrorPayload
	req.NoError(json.Unmarshal(expect(t, conn, domain.EventError), &payload))
	req.Equal("rate_limited", payload.Code)
}

func TestWebSocketRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.router)
	defer server.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/chat", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketChecksOrigin(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.router)
	defer server.Close()

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat?token=" + token(t, "u1", domain.RoleLearner, "")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketDisconnectCleansRegistry(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	conn := ts.dial(t, "u1")
	join(t, conn, "u1", "u2")
	req.Equal(1, ts.registry.ConnectionCount())

	req.NoError(conn.Close())
	req.Eventually(func() bool {
		return ts.registry.ConnectionCount() == 0 && ts.registry.ConversationCount() == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWebSocketWaitBlocksUntilSessionsEnd(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	conn := ts.dial(t, "u1")
	join(t, conn, "u1", "u2")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req.ErrorIs(ts.websocket.Wait(ctx), context.DeadlineExceeded)

	ts.registry.Close()

	ctx, cancel = context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req.NoError(ts.websocket.Wait(ctx))
	req.Zero(ts.registry.ConnectionCount())
}
