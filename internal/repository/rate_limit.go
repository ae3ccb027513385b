package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	apperrors "tutor_chat/pkg/errors"
	"tutor_chat/pkg/logger"
)

// RateLimitRepository - счетчики с фиксированным окном
type RateLimitRepository interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

type rateLimitRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewRateLimitRepository(redis *redis.Client, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, log: log}
}

func (r *rateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	key = "ratelimit:" + key

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		r.log.Error("Failed to increment rate limit", "error", err)
		return 0, apperrors.Upstream("rate limit", err)
	}

	// Первый hit открывает окно
	if count == 1 {
		if err := r.redis.Expire(ctx, key, window).Err(); err != nil {
			r.log.Warn("Failed to set rate limit window", "key", key, "error", err)
		}
	}

	return count, nil
}
