//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=mocks/mock_message_repository.go -package=mocks
package repository

import (
	"context"
	"sort"

	"tutor_chat/internal/domain"
)

// MessageRepository - единственный владелец сохраненного состояния сообщений.
// Все методы чтения отдают удаленные сообщения уже замаскированными.
type MessageRepository interface {
	Append(ctx context.Context, senderID, recipientID, body string, attachment *domain.Attachment) (*domain.Message, error)
	History(ctx context.Context, a, b string) ([]*domain.Message, error)
	MarkRead(ctx context.Context, readerID, otherID string) ([]*domain.Message, error)
	SoftDelete(ctx context.Context, messageID, requesterID string) (*domain.Message, bool, error)
	GetByID(ctx context.Context, messageID string) (*domain.Message, error)
	CountUnread(ctx context.Context, readerID, otherID string) (int, error)
}

// sortMessages упорядочивает по времени, при равенстве по порядку вставки
func sortMessages(messages []*domain.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if !messages[i].Timestamp.Equal(messages[j].Timestamp) {
			return messages[i].Timestamp.Before(messages[j].Timestamp)
		}
		return messages[i].Seq < messages[j].Seq
	})
}
