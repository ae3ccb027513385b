package handler

import (
	"tutor_chat/internal/config"
	"tutor_chat/internal/realtime"
	"tutor_chat/internal/service"
	"tutor_chat/pkg/logger"
)

type Handlers struct {
	Health     *HealthHandler
	Chat       *ChatHandler
	Attachment *AttachmentHandler
	Presence   *PresenceHandler
	WebSocket  *WebSocketHandler
}

func NewHandlers(services *service.Services, registry *realtime.Registry, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:     NewHealthHandler(registry),
		Chat:       NewChatHandler(services.Messaging, log),
		Attachment: NewAttachmentHandler(services.Attachments, log),
		Presence:   NewPresenceHandler(services.Presence, log),
		WebSocket: NewWebSocketHandler(
			services.Messaging,
			services.Presence,
			services.RateLimit,
			registry,
			cfg.Chat,
			cfg.Server.AllowedOrigins,
			log,
		),
	}
}
