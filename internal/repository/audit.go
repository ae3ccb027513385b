package repository

import (
	"context"

	"tutor_chat/internal/domain"
	apperrors "tutor_chat/pkg/errors"
	"tutor_chat/pkg/logger"
)

type AuditRepository interface {
	CreateLog(ctx context.Context, log *domain.AuditLog) error
}

type auditRepository struct {
	db  PgxPool
	log logger.Logger
}

func NewAuditRepository(db PgxPool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

func (r *auditRepository) CreateLog(ctx context.Context, auditLog *domain.AuditLog) error {
	query := `
		INSERT INTO audit_log (event_time, actor_id, actor_role, conversation_key, event_type, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		auditLog.EventTime, auditLog.ActorID, auditLog.ActorRole,
		string(auditLog.ConversationKey), auditLog.EventType, auditLog.Payload,
	).Scan(&auditLog.ID)
	if err != nil {
		r.log.Error("Failed to create audit log", "error", err)
		return apperrors.Upstream("create audit log", err)
	}

	return nil
}

// logAuditRepository пишет аудит в лог, когда Postgres не используется (STORAGE_DRIVER=badger)
type logAuditRepository struct {
	log logger.Logger
}

func NewLogAuditRepository(log logger.Logger) AuditRepository {
	return &logAuditRepository{log: log.With("component", "audit")}
}

func (r *logAuditRepository) CreateLog(ctx context.Context, auditLog *domain.AuditLog) error {
	r.log.Info("Audit event",
		"event_type", auditLog.EventType,
		"actor_id", auditLog.ActorID,
		"actor_role", auditLog.ActorRole,
		"conversation_key", auditLog.ConversationKey,
		"payload", auditLog.Payload,
	)
	return nil
}
