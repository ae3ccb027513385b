package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"tutor_chat/internal/config"
	"tutor_chat/internal/domain"
	"tutor_chat/internal/middleware"
	"tutor_chat/internal/realtime"
	"tutor_chat/internal/service"
	apperrors "tutor_chat/pkg/errors"
	"tutor_chat/pkg/logger"
)

type WebSocketHandler struct {
	messagingService service.MessagingService
	presenceService  service.PresenceService
	rateLimitService service.RateLimitService
	registry         *realtime.Registry
	upgrader         websocket.Upgrader
	cfg              config.ChatConfig
	log              logger.Logger

	sessions sync.WaitGroup
}

func NewWebSocketHandler(
	messagingService service.MessagingService,
	presenceService service.PresenceService,
	rateLimitService service.RateLimitService,
	registry *realtime.Registry,
	cfg config.ChatConfig,
	allowedOrigins []string,
	log logger.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		messagingService: messagingService,
		presenceService:  presenceService,
		rateLimitService: rateLimitService,
		registry:         registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		cfg: cfg,
		log: log,
	}
}

// checkOrigin пропускает клиентов без Origin (не браузер) и origin из списка
func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowAll := lo.Contains(allowedOrigins, "*")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowAll || lo.Contains(allowedOrigins, origin)
	}
}

// HandleChat - GET /ws/chat, за RequireAuth
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	participant, ok := middleware.ParticipantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "participant_id", participant.ID, "error", err)
		return
	}
	h.sessions.Add(1)
	defer h.sessions.Done()

	client := realtime.NewClient(conn, participant.ID, realtime.ClientOptions{
		SendBufferSize: h.cfg.SendBufferSize,
		PingInterval:   h.cfg.PingInterval,
		PongWait:       h.cfg.PongWait,
		MaxFrameBytes:  h.cfg.MaxFrameBytes,
	}, h.log)

	// контекст запроса отменяется после hijack, поэтому живем на своем
	ctx := context.WithoutCancel(c.Request.Context())

	h.registry.Attach(client)
	h.presenceService.Connected(ctx, participant.ID, client.ID())
	h.log.Info("Websocket connected", "participant_id", participant.ID, "connection_id", client.ID())

	defer func() {
		h.registry.Disconnect(client)
		h.presenceService.Disconnected(ctx, participant.ID, client.ID())
		h.log.Info("Websocket disconnected", "participant_id", participant.ID, "connection_id", client.ID())
	}()

	session := &chatSession{handler: h, participant: participant, client: client}
	client.Run(ctx, session.dispatch)
}

// Wait ждет, пока завершатся все сессии, включая обработку текущего фрейма.
// Вызывается после srv.Shutdown и закрытия реестра, до закрытия хранилищ.
func (h *WebSocketHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// chatSession обрабатывает фреймы одного соединения. Фреймы приходят
// последовательно, поэтому собственного состояния под мьютексом не нужно.
type chatSession struct {
	handler     *WebSocketHandler
	participant domain.Participant
	client      *realtime.Client
}

func (s *chatSession) dispatch(ctx context.Context, frame []byte) {
	name, evt, err := domain.DecodeClientEvent(frame)
	if err != nil {
		s.reply(domain.NewErrorEvent(name, err))
		return
	}

	if err := s.handle(ctx, evt); err != nil {
		if !errors.Is(err, apperrors.ErrValidation) && !errors.Is(err, apperrors.ErrForbidden) &&
			!errors.Is(err, apperrors.ErrNotFound) && !errors.Is(err, apperrors.ErrRateLimited) {
			s.handler.log.Error("Failed to handle chat event",
				"event", name, "participant_id", s.participant.ID, "error", err)
		}
		s.reply(domain.NewErrorEvent(name, err))
	}
}

func (s *chatSession) handle(ctx context.Context, evt domain.ClientEvent) error {
	switch e := evt.(type) {
	case *domain.JoinRoomEvent:
		if err := s.authorize(e.SenderID); err != nil {
			return err
		}
		key := e.Conversation()
		s.handler.registry.Join(s.client, key)
		s.reply(domain.NewRoomJoinedEvent(key))
		return nil

	case *domain.LeaveRoomEvent:
		if err := s.authorize(e.SenderID); err != nil {
			return err
		}
		s.handler.registry.Leave(s.client, e.Conversation())
		return nil

	case *domain.SendMessageEvent:
		if err := s.authorize(e.SenderID); err != nil {
			return err
		}
		if err := s.allowSend(ctx); err != nil {
			return err
		}
		_, err := s.handler.messagingService.Send(ctx, s.participant, e.RecipientID, e.Message, e.Attachment())
		return err

	case *domain.MessageReadEvent:
		if err := s.authorize(e.SenderID); err != nil {
			return err
		}
		_, err := s.handler.messagingService.AcknowledgeRead(ctx, s.participant.ID, e.RecipientID)
		return err

	case *domain.DeleteMessageEvent:
		if e.SenderID != "" {
			if err := s.authorize(e.SenderID); err != nil {
				return err
			}
		}
		_, err := s.handler.messagingService.DeleteMessage(ctx, s.participant, e.MessageID)
		return err
	}

	return apperrors.Validationf("unsupported event %s", evt.EventName())
}

// authorize сверяет заявленного отправителя с владельцем токена
func (s *chatSession) authorize(senderID string) error {
	if senderID != s.participant.ID {
		return apperrors.ErrForbidden
	}
	return nil
}

// allowSend - лимит отправки на участника. При недоступном Redis пропускаем.
func (s *chatSession) allowSend(ctx context.Context) error {
	allowed, _, err := s.handler.rateLimitService.Allow(ctx,
		"chat:send:"+s.participant.ID, s.handler.cfg.SendRatePerMinute, time.Minute)
	if err != nil {
		s.handler.log.Warn("Rate limit check failed", "participant_id", s.participant.ID, "error", err)
		return nil
	}
	if !allowed {
		return apperrors.ErrRateLimited
	}
	return nil
}

func (s *chatSession) reply(event domain.ServerEvent) {
	if err := s.client.Send(event); err != nil {
		s.handler.log.Debug("Failed to reply", "event", event.Event, "error", err)
	}
}
