package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"tutor_chat/internal/domain"
	apperrors "tutor_chat/pkg/errors"
	"tutor_chat/pkg/logger"
)

const messageColumns = `seq, id, conversation_key, sender_id, recipient_id, body, file_url, file_type,
		read, read_at, deleted, deleted_at, created_at`

// PgxPool - часть pgxpool.Pool, которой пользуются репозитории
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type messageRepository struct {
	db  PgxPool
	log logger.Logger
}

func NewMessageRepository(db PgxPool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

func (r *messageRepository) Append(ctx context.Context, senderID, recipientID, body string, attachment *domain.Attachment) (*domain.Message, error) {
	msg, err := domain.NewMessage(senderID, recipientID, body, attachment, time.Now())
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO direct_messages (id, conversation_key, sender_id, recipient_id, body, file_url, file_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq
	`

	err = r.db.QueryRow(ctx, query,
		msg.ID, string(msg.ConversationKey), msg.SenderID, msg.RecipientID, msg.Body,
		nullableString(msg.FileURL), nullableString(string(msg.FileType)), msg.Timestamp,
	).Scan(&msg.Seq)
	if err != nil {
		r.log.Error("Failed to append message", "error", err)
		return nil, apperrors.Upstream("append message", err)
	}

	return msg, nil
}

func (r *messageRepository) History(ctx context.Context, a, b string) ([]*domain.Message, error) {
	if err := domain.ValidatePair(a, b); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + messageColumns + `
		FROM direct_messages
		WHERE conversation_key = $1
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := r.db.Query(ctx, query, string(domain.ResolveConversation(a, b)))
	if err != nil {
		r.log.Error("Failed to load history", "error", err)
		return nil, apperrors.Upstream("load history", err)
	}

	messages, err := collectMessages(rows)
	if err != nil {
		r.log.Error("Failed to scan history", "error", err)
		return nil, apperrors.Upstream("load history", err)
	}

	return messages, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, readerID, otherID string) ([]*domain.Message, error) {
	if err := domain.ValidatePair(readerID, otherID); err != nil {
		return nil, err
	}

	query := `
		UPDATE direct_messages
		SET read = TRUE, read_at = $3
		WHERE recipient_id = $1 AND sender_id = $2 AND read = FALSE
		RETURNING ` + messageColumns

	rows, err := r.db.Query(ctx, query, readerID, otherID, time.Now().UTC())
	if err != nil {
		r.log.Error("Failed to mark messages as read", "error", err)
		return nil, apperrors.Upstream("mark read", err)
	}

	messages, err := collectMessages(rows)
	if err != nil {
		r.log.Error("Failed to scan read messages", "error", err)
		return nil, apperrors.Upstream("mark read", err)
	}

	sortMessages(messages)
	return messages, nil
}

func (r *messageRepository) SoftDelete(ctx context.Context, messageID, requesterID string) (*domain.Message, bool, error) {
	id, err := uuid.Parse(messageID)
	if err != nil {
		return nil, false, fmt.Errorf("message %s: %w", messageID, apperrors.ErrNotFound)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return nil, false, apperrors.Upstream("delete message", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + messageColumns + ` FROM direct_messages WHERE id = $1 FOR UPDATE`
	msg, err := scanMessage(tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("message %s: %w", messageID, apperrors.ErrNotFound)
	}
	if err != nil {
		r.log.Error("Failed to lock message", "error", err)
		return nil, false, apperrors.Upstream("delete message", err)
	}

	if msg.SenderID != requesterID {
		return nil, false, fmt.Errorf("delete message %s: %w", messageID, apperrors.ErrForbidden)
	}
	if msg.Deleted {
		return msg.Redacted(), false, nil
	}

	deletedAt := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE direct_messages SET deleted = TRUE, deleted_at = $2 WHERE id = $1`, id, deletedAt); err != nil {
		r.log.Error("Failed to delete message", "error", err)
		return nil, false, apperrors.Upstream("delete message", err)
	}
	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit message deletion", "error", err)
		return nil, false, apperrors.Upstream("delete message", err)
	}

	msg.Deleted = true
	msg.DeletedAt = &deletedAt
	return msg.Redacted(), true, nil
}

func (r *messageRepository) GetByID(ctx context.Context, messageID string) (*domain.Message, error) {
	id, err := uuid.Parse(messageID)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", messageID, apperrors.ErrNotFound)
	}

	query := `SELECT ` + messageColumns + ` FROM direct_messages WHERE id = $1`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", messageID, apperrors.ErrNotFound)
	}
	if err != nil {
		r.log.Error("Failed to get message", "error", err)
		return nil, apperrors.Upstream("get message", err)
	}

	return msg.Redacted(), nil
}

func (r *messageRepository) CountUnread(ctx context.Context, readerID, otherID string) (int, error) {
	if err := domain.ValidatePair(readerID, otherID); err != nil {
		return 0, err
	}

	query := `
		SELECT COUNT(*)
		FROM direct_messages
		WHERE recipient_id = $1 AND sender_id = $2 AND read = FALSE
	`

	var count int
	if err := r.db.QueryRow(ctx, query, readerID, otherID).Scan(&count); err != nil {
		r.log.Error("Failed to count unread messages", "error", err)
		return 0, apperrors.Upstream("count unread", err)
	}

	return count, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	msg := &domain.Message{}
	var (
		conversationKey   string
		fileURL, fileType *string
	)

	err := row.Scan(
		&msg.Seq, &msg.ID, &conversationKey, &msg.SenderID, &msg.RecipientID, &msg.Body,
		&fileURL, &fileType, &msg.Read, &msg.ReadAt, &msg.Deleted, &msg.DeletedAt, &msg.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	msg.ConversationKey = domain.ConversationKey(conversationKey)
	if fileURL != nil {
		msg.FileURL = *fileURL
	}
	if fileType != nil {
		msg.FileType = domain.AttachmentKind(*fileType)
	}
	msg.Timestamp = msg.Timestamp.UTC()
	return msg, nil
}

func collectMessages(rows pgx.Rows) ([]*domain.Message, error) {
	defer rows.Close()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg.Redacted())
	}
	return messages, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
