package service

import (
	"tutor_chat/internal/config"
	"tutor_chat/internal/events"
	"tutor_chat/internal/realtime"
	"tutor_chat/internal/repository"
	"tutor_chat/pkg/logger"
)

type Services struct {
	Messaging     MessagingService
	Notifications NotificationRouter
	Attachments   AttachmentService
	Presence      PresenceService
	RateLimit     RateLimitService
	Audit         AuditService
}

func NewServices(
	repos *repository.Repositories,
	registry *realtime.Registry,
	store ObjectStore,
	publisher events.Publisher,
	cfg *config.Config,
	log logger.Logger,
) *Services {
	services := &Services{
		Notifications: NewNotificationRouter(registry, log),
		Attachments:   NewAttachmentService(store, cfg.S3.MaxUploadBytes, log),
		Presence:      NewPresenceService(repos.Presence, log),
		RateLimit:     NewRateLimitService(repos.RateLimit, log),
		Audit:         NewAuditService(repos.Audit, log),
	}

	services.Messaging = NewMessagingService(
		repos.Messages,
		registry,
		services.Notifications,
		services.Presence,
		services.Audit,
		publisher,
		cfg.Chat.MaxBodyLength,
		log,
	)

	return services
}
