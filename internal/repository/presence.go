package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"tutor_chat/internal/domain"
	apperrors "tutor_chat/pkg/errors"
	"tutor_chat/pkg/logger"
)

// presenceTTL ограничивает жизнь ключей, если инстанс упал без Disconnect
const presenceTTL = 24 * time.Hour

type PresenceRepository interface {
	AddConnection(ctx context.Context, participantID, connectionID string) error
	RemoveConnection(ctx context.Context, participantID, connectionID string) error
	Get(ctx context.Context, participantID string) (*domain.Presence, error)
}

type presenceRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewPresenceRepository(redis *redis.Client, log logger.Logger) PresenceRepository {
	return &presenceRepository{redis: redis, log: log}
}

func connectionsKey(participantID string) string {
	return fmt.Sprintf("presence:conn:%s", participantID)
}

func lastSeenKey(participantID string) string {
	return fmt.Sprintf("presence:last_seen:%s", participantID)
}

func (r *presenceRepository) AddConnection(ctx context.Context, participantID, connectionID string) error {
	key := connectionsKey(participantID)

	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, connectionID)
		pipe.Expire(ctx, key, presenceTTL)
		pipe.Set(ctx, lastSeenKey(participantID), time.Now().Unix(), presenceTTL)
		return nil
	})
	if err != nil {
		r.log.Error("Failed to add presence connection", "participant_id", participantID, "error", err)
		return apperrors.Upstream("add presence", err)
	}
	return nil
}

func (r *presenceRepository) RemoveConnection(ctx context.Context, participantID, connectionID string) error {
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, connectionsKey(participantID), connectionID)
		pipe.Set(ctx, lastSeenKey(participantID), time.Now().Unix(), presenceTTL)
		return nil
	})
	if err != nil {
		r.log.Error("Failed to remove presence connection", "participant_id", participantID, "error", err)
		return apperrors.Upstream("remove presence", err)
	}
	return nil
}

func (r *presenceRepository) Get(ctx context.Context, participantID string) (*domain.Presence, error) {
	count, err := r.redis.SCard(ctx, connectionsKey(participantID)).Result()
	if err != nil {
		r.log.Error("Failed to read presence", "participant_id", participantID, "error", err)
		return nil, apperrors.Upstream("get presence", err)
	}

	presence := &domain.Presence{
		UserID:      participantID,
		Online:      count > 0,
		Connections: count,
	}

	raw, err := r.redis.Get(ctx, lastSeenKey(participantID)).Result()
	if errors.Is(err, redis.Nil) {
		return presence, nil
	}
	if err != nil {
		r.log.Error("Failed to read last seen", "participant_id", participantID, "error", err)
		return nil, apperrors.Upstream("get presence", err)
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		lastSeen := time.Unix(unix, 0).UTC()
		presence.LastSeen = &lastSeen
	}

	return presence, nil
}
