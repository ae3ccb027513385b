package service

import (
	"context"
	"time"

	"tutor_chat/internal/repository"
	"tutor_chat/pkg/logger"
)

type RateLimitService interface {
	// Allow учитывает попытку и сообщает, укладывается ли она в лимит окна
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int64, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int64, error) {
	if limit <= 0 {
		return true, 0, nil
	}

	count, err := s.rateLimitRepo.Increment(ctx, key, window)
	if err != nil {
		return false, 0, err
	}

	return count <= int64(limit), count, nil
}
