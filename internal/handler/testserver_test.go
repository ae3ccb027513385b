package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"tutor_chat/internal/config"
	"tutor_chat/internal/domain"
	"tutor_chat/internal/events"
	"tutor_chat/internal/middleware"
	"tutor_chat/internal/realtime"
	"tutor_chat/internal/repository"
	"tutor_chat/internal/service"
	"tutor_chat/pkg/jwt"
	"tutor_chat/pkg/logger"
)

const (
	testSecret = "handler-test-secret"
	testIssuer = "platform-auth"
)

type stubPresence struct {
	mu        sync.Mutex
	connected map[string]int
}

func (p *stubPresence) Connected(_ context.Context, participantID, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected[participantID]++
}

func (p *stubPresence) Disconnected(_ context.Context, participantID, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected[participantID]--
}

func (p *stubPresence) Get(_ context.Context, participantID string) (*domain.Presence, error) {
	if err := domain.ValidateParticipantID(participantID); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	count := p.connected[participantID]
	return &domain.Presence{UserID: participantID, Online: count > 0, Connections: int64(count)}, nil
}

// stubRateLimit пропускает первые limit вызовов на ключ
type stubRateLimit struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (r *stubRateLimit) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, int64, error) {
	if r.err != nil {
		return false, 0, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key]++
	return r.counts[key] <= int64(limit), r.counts[key], nil
}

type memoryObjectStore struct{}

func (memoryObjectStore) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	return "https://cdn.example.com/" + key, nil
}

type testServer struct {
	router    *gin.Engine
	registry  *realtime.Registry
	messaging service.MessagingService
	presence  *stubPresence
	rateLimit *stubRateLimit
	websocket *WebSocketHandler
}

var testChatConfig = config.ChatConfig{
	SendRatePerMinute: 5,
	MaxBodyLength:     256,
	SendBufferSize:    16,
	PingInterval:      time.Second,
	PongWait:          5 * time.Second,
	MaxFrameBytes:     8 << 10,
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	messages, err := repository.NewBadgerMessageRepository(db, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = messages.Close()
		_ = db.Close()
	})

	registry := realtime.NewRegistry(log)
	t.Cleanup(registry.Close)

	ts := &testServer{
		registry:  registry,
		presence:  &stubPresence{connected: map[string]int{}},
		rateLimit: &stubRateLimit{counts: map[string]int64{}},
	}

	notifications := service.NewNotificationRouter(registry, log)
	audit := service.NewAuditService(repository.NewLogAuditRepository(log), log)
	ts.messaging = service.NewMessagingService(messages, registry, notifications, ts.presence, audit,
		events.NopPublisher{}, testChatConfig.MaxBodyLength, log)

	handlers := &Handlers{
		Health:     NewHealthHandler(registry),
		Chat:       NewChatHandler(ts.messaging, log),
		Attachment: NewAttachmentHandler(service.NewAttachmentService(memoryObjectStore{}, 1<<20, log), log),
		Presence:   NewPresenceHandler(ts.presence, log),
		WebSocket: NewWebSocketHandler(ts.messaging, ts.presence, ts.rateLimit, registry,
			testChatConfig, []string{"https://app.example.com"}, log),
	}

	auth := middleware.NewAuthMiddleware(testSecret, testIssuer, log)
	router := gin.New()
	router.Use(middleware.ErrorHandler(log))
	router.GET("/health", handlers.Health.Check)
	v1 := router.Group("/api/v1", auth.RequireAuth())
	{
		v1.GET("/conversations/:participantId", handlers.Chat.GetSummary)
		v1.GET("/conversations/:participantId/messages", handlers.Chat.GetMessages)
		v1.POST("/conversations/:participantId/read", handlers.Chat.MarkRead)
		v1.DELETE("/messages/:messageId", handlers.Chat.DeleteMessage)
		v1.POST("/attachments", handlers.Attachment.Upload)
		v1.GET("/users/:id/presence", handlers.Presence.GetPresence)
	}
	router.GET("/ws/chat", auth.RequireAuth(), handlers.WebSocket.HandleChat)

	ts.router = router
	ts.websocket = handlers.WebSocket
	return ts
}

func token(t *testing.T, userID, role, name string) string {
	t.Helper()
	signed, err := jwt.GenerateAccessToken(userID, role, name, testSecret, testIssuer, time.Hour)
	require.NoError(t, err)
	return signed
}

// serve выполняет запрос через роутер от имени владельца bearer
func (ts *testServer) serve(r *http.Request, bearer string) *httptest.ResponseRecorder {
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, r)
	return w
}
