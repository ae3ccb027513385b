package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"tutor_chat/pkg/logger"
)

type Repositories struct {
	Messages  MessageRepository
	Audit     AuditRepository
	Presence  PresenceRepository
	RateLimit RateLimitRepository
}

// NewRepositories собирает репозитории. Хранилище сообщений выбирается в main
// (Postgres или Badger); без пула Postgres аудит уходит в лог.
func NewRepositories(messages MessageRepository, db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	repos := &Repositories{
		Messages:  messages,
		Presence:  NewPresenceRepository(redis, log),
		RateLimit: NewRateLimitRepository(redis, log),
	}

	if db != nil {
		repos.Audit = NewAuditRepository(db, log)
	} else {
		log.Warn("Postgres pool is not configured, audit events go to the log")
		repos.Audit = NewLogAuditRepository(log)
	}

	return repos
}
