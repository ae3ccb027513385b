package service

import (
	"context"
	"time"

	"tutor_chat/internal/domain"
	"tutor_chat/internal/repository"
	"tutor_chat/pkg/logger"
)

type AuditService interface {
	LogEvent(ctx context.Context, actor domain.Participant, key domain.ConversationKey, eventType string, payload map[string]interface{}) error
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, actor domain.Participant, key domain.ConversationKey, eventType string, payload map[string]interface{}) error {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	auditLog := &domain.AuditLog{
		EventTime:       time.Now().UTC(),
		ActorID:         actor.ID,
		ActorRole:       actor.Role,
		ConversationKey: key,
		EventType:       eventType,
		Payload:         payload,
	}

	return s.auditRepo.CreateLog(ctx, auditLog)
}
