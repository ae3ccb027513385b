package service

import (
	"context"

	"tutor_chat/internal/domain"
	"tutor_chat/internal/repository"
	"tutor_chat/pkg/logger"
)

// PresenceService зеркалирует живые соединения в Redis, чтобы онлайн-статус
// был виден всем инстансам. Ошибки Redis не рвут websocket.
type PresenceService interface {
	Connected(ctx context.Context, participantID, connectionID string)
	Disconnected(ctx context.Context, participantID, connectionID string)
	Get(ctx context.Context, participantID string) (*domain.Presence, error)
}

type presenceService struct {
	presenceRepo repository.PresenceRepository
	log          logger.Logger
}

func NewPresenceService(presenceRepo repository.PresenceRepository, log logger.Logger) PresenceService {
	return &presenceService{presenceRepo: presenceRepo, log: log}
}

func (s *presenceService) Connected(ctx context.Context, participantID, connectionID string) {
	if err := s.presenceRepo.AddConnection(ctx, participantID, connectionID); err != nil {
		s.log.Warn("Presence update failed", "participant_id", participantID, "error", err)
	}
}

func (s *presenceService) Disconnected(ctx context.Context, participantID, connectionID string) {
	if err := s.presenceRepo.RemoveConnection(ctx, participantID, connectionID); err != nil {
		s.log.Warn("Presence update failed", "participant_id", participantID, "error", err)
	}
}

func (s *presenceService) Get(ctx context.Context, participantID string) (*domain.Presence, error) {
	if err := domain.ValidateParticipantID(participantID); err != nil {
		return nil, err
	}
	return s.presenceRepo.Get(ctx, participantID)
}
