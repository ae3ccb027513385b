package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"tutor_chat/internal/domain"
	"tutor_chat/pkg/logger"
)

const (
	TypeMessageSent    = "message.sent"
	TypeMessageRead    = "message.read"
	TypeMessageDeleted = "message.deleted"
)

// Event - доменное событие для внешних потребителей (аналитика, email-уведомления)
type Event struct {
	Type            string                 `json:"type"`
	ConversationKey domain.ConversationKey `json:"conversationKey"`
	ActorID         string                 `json:"actorId"`
	MessageIDs      []string               `json:"messageIds"`
	RecipientID     string                 `json:"recipientId,omitempty"`
	AttachmentKind  domain.AttachmentKind  `json:"attachmentKind,omitempty"`
	OccurredAt      time.Time              `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

func MessageSent(msg *domain.Message) Event {
	return Event{
		Type:            TypeMessageSent,
		ConversationKey: msg.ConversationKey,
		ActorID:         msg.SenderID,
		MessageIDs:      []string{msg.ID},
		RecipientID:     msg.RecipientID,
		AttachmentKind:  msg.FileType,
		OccurredAt:      msg.Timestamp,
	}
}

func MessagesRead(readerID, otherID string, messages []*domain.Message, readAt time.Time) Event {
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	return Event{
		Type:            TypeMessageRead,
		ConversationKey: domain.ResolveConversation(readerID, otherID),
		ActorID:         readerID,
		MessageIDs:      ids,
		RecipientID:     otherID,
		OccurredAt:      readAt,
	}
}

func MessageDeleted(msg *domain.Message, at time.Time) Event {
	return Event{
		Type:            TypeMessageDeleted,
		ConversationKey: msg.ConversationKey,
		ActorID:         msg.SenderID,
		MessageIDs:      []string{msg.ID},
		RecipientID:     msg.RecipientID,
		OccurredAt:      at,
	}
}

// KafkaPublisher пишет события асинхронно, ключ - ключ диалога,
// поэтому события одного диалога попадают в одну партицию по порядку.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    logger.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log logger.Logger) *KafkaPublisher {
	publisher := &KafkaPublisher{log: log}
	publisher.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error("Failed to publish chat events", "count", len(messages), "error", err)
			}
		},
	}
	return publisher
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ConversationKey),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
}

// Close дожидается отправки буфера
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher используется, когда KAFKA_BROKERS не задан
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
