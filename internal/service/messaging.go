package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"tutor_chat/internal/domain"
	"tutor_chat/internal/events"
	"tutor_chat/internal/realtime"
	"tutor_chat/internal/repository"
	apperrors "tutor_chat/pkg/errors"
	"tutor_chat/pkg/logger"
)

// MessagingService - отправка, прочтение и удаление сообщений с рассылкой
// по живым соединениям. Рассылка идет только после успешной записи и под
// блокировкой диалога, поэтому подписчики видят события в порядке записи.
type MessagingService interface {
	Send(ctx context.Context, sender domain.Participant, recipientID, body string, attachment *domain.Attachment) (*domain.Message, error)
	History(ctx context.Context, callerID, otherID string) ([]*domain.Message, error)
	AcknowledgeRead(ctx context.Context, readerID, otherID string) ([]*domain.Message, error)
	DeleteMessage(ctx context.Context, requester domain.Participant, messageID string) (*domain.Message, error)
	Summary(ctx context.Context, callerID, otherID string) (*domain.ConversationSummary, error)
}

type messagingService struct {
	messages      repository.MessageRepository
	registry      *realtime.Registry
	notifications NotificationRouter
	presence      PresenceService
	audit         AuditService
	publisher     events.Publisher
	locks         *keyedMutex
	maxBodyLength int
	log           logger.Logger
}

func NewMessagingService(
	messages repository.MessageRepository,
	registry *realtime.Registry,
	notifications NotificationRouter,
	presence PresenceService,
	audit AuditService,
	publisher events.Publisher,
	maxBodyLength int,
	log logger.Logger,
) MessagingService {
	return &messagingService{
		messages:      messages,
		registry:      registry,
		notifications: notifications,
		presence:      presence,
		audit:         audit,
		publisher:     publisher,
		locks:         newKeyedMutex(),
		maxBodyLength: maxBodyLength,
		log:           log,
	}
}

func (s *messagingService) Send(ctx context.Context, sender domain.Participant, recipientID, body string, attachment *domain.Attachment) (*domain.Message, error) {
	if s.maxBodyLength > 0 && utf8.RuneCountInString(body) > s.maxBodyLength {
		return nil, apperrors.Validationf("message exceeds %d characters", s.maxBodyLength)
	}

	key := domain.ResolveConversation(sender.ID, recipientID)
	unlock := s.locks.Lock(key)
	defer unlock()

	msg, err := s.messages.Append(ctx, sender.ID, recipientID, body, attachment)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	delivered := realtime.Deliver(s.registry.ConversationConnections(key), domain.NewReceiveMessageEvent(msg), s.log)
	notified := s.notifications.Notify(sender, msg)

	s.log.Debug("Message sent",
		"message_id", msg.ID,
		"conversation_key", key,
		"delivered", delivered,
		"notified", notified,
	)

	s.publish(ctx, events.MessageSent(msg))
	return msg, nil
}

func (s *messagingService) History(ctx context.Context, callerID, otherID string) ([]*domain.Message, error) {
	messages, err := s.messages.History(ctx, callerID, otherID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return messages, nil
}

// AcknowledgeRead помечает входящие сообщения от otherID прочитанными
// и сообщает об этом диалогу. Если менять нечего, событие не отправляется.
func (s *messagingService) AcknowledgeRead(ctx context.Context, readerID, otherID string) ([]*domain.Message, error) {
	key := domain.ResolveConversation(readerID, otherID)
	unlock := s.locks.Lock(key)
	defer unlock()

	updated, err := s.messages.MarkRead(ctx, readerID, otherID)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if len(updated) == 0 {
		return updated, nil
	}

	readAt := time.Now().UTC()
	if updated[0].ReadAt != nil {
		readAt = *updated[0].ReadAt
	}

	delivered := realtime.Deliver(s.registry.ConversationConnections(key),
		domain.NewMessageReadEvent(otherID, readerID, readAt), s.log)

	s.log.Debug("Messages marked as read",
		"conversation_key", key, "reader_id", readerID, "count", len(updated), "delivered", delivered)

	s.publish(ctx, events.MessagesRead(readerID, otherID, updated, readAt))
	return updated, nil
}

// DeleteMessage - мягкое удаление. Повторное удаление не рассылается повторно.
func (s *messagingService) DeleteMessage(ctx context.Context, requester domain.Participant, messageID string) (*domain.Message, error) {
	existing, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}

	key := existing.ConversationKey
	// участник чужого диалога отсекается до блокировки
	if !key.Includes(requester.ID) {
		return nil, fmt.Errorf("delete message %s: %w", messageID, apperrors.ErrForbidden)
	}

	unlock := s.locks.Lock(key)
	defer unlock()

	msg, changed, err := s.messages.SoftDelete(ctx, messageID, requester.ID)
	if err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}
	if !changed {
		return msg, nil
	}

	delivered := realtime.Deliver(s.registry.ConversationConnections(key), domain.NewMessageDeletedEvent(msg.ID), s.log)
	s.log.Debug("Message deleted", "message_id", msg.ID, "conversation_key", key, "delivered", delivered)

	err = s.audit.LogEvent(ctx, requester, key, domain.EventTypeMessageDeleted, map[string]interface{}{
		"message_id":   msg.ID,
		"recipient_id": msg.RecipientID,
	})
	if err != nil {
		s.log.Warn("Failed to write audit log", "message_id", msg.ID, "error", err)
	}

	deletedAt := time.Now().UTC()
	if msg.DeletedAt != nil {
		deletedAt = *msg.DeletedAt
	}
	s.publish(ctx, events.MessageDeleted(msg, deletedAt))
	return msg, nil
}

func (s *messagingService) Summary(ctx context.Context, callerID, otherID string) (*domain.ConversationSummary, error) {
	unread, err := s.messages.CountUnread(ctx, callerID, otherID)
	if err != nil {
		return nil, fmt.Errorf("conversation summary: %w", err)
	}

	summary := &domain.ConversationSummary{
		ConversationKey: domain.ResolveConversation(callerID, otherID),
		ParticipantID:   otherID,
		Unread:          unread,
		Online:          len(s.registry.ParticipantConnections(otherID)) > 0,
	}

	if !summary.Online {
		presence, err := s.presence.Get(ctx, otherID)
		if err != nil {
			s.log.Warn("Failed to read presence", "participant_id", otherID, "error", err)
		} else {
			summary.Online = presence.Online
		}
	}

	return summary, nil
}

func (s *messagingService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("Failed to publish domain event", "type", event.Type, "error", err)
	}
}
