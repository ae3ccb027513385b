package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"tutor_chat/internal/domain"
	apperrors "tutor_chat/pkg/errors"
	"tutor_chat/pkg/logger"
)

const (
	badgerSequenceKey   = "seq:msg"
	badgerSequenceLease = 100
	badgerUpdateRetries = 3
)

// storedMessage - запись на диске, порядковый номер хранится рядом с сообщением
type storedMessage struct {
	domain.Message
	Seq int64 `json:"seq"`
}

// BadgerMessageRepository - встраиваемое хранилище для одного инстанса.
// Ключ "msg:{conversation}:{timestamp_padded}:{seq_padded}" дает сортировку
// префиксным сканом, "idx:msg:{id}" указывает на основной ключ.
type BadgerMessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log logger.Logger
	now func() time.Time
}

func NewBadgerMessageRepository(db *badger.DB, log logger.Logger) (*BadgerMessageRepository, error) {
	seq, err := db.GetSequence([]byte(badgerSequenceKey), badgerSequenceLease)
	if err != nil {
		return nil, fmt.Errorf("open message sequence: %w", err)
	}
	return &BadgerMessageRepository{db: db, seq: seq, log: log, now: time.Now}, nil
}

// Close возвращает неиспользованный диапазон последовательности
func (r *BadgerMessageRepository) Close() error {
	return r.seq.Release()
}

func conversationPrefix(key domain.ConversationKey) []byte {
	return []byte(fmt.Sprintf("msg:%s:", key))
}

func messageKey(msg *storedMessage) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%019d", msg.ConversationKey, msg.Timestamp.UnixNano(), msg.Seq))
}

func messageIndexKey(messageID string) []byte {
	return []byte("idx:msg:" + messageID)
}

func (r *BadgerMessageRepository) Append(ctx context.Context, senderID, recipientID, body string, attachment *domain.Attachment) (*domain.Message, error) {
	msg, err := domain.NewMessage(senderID, recipientID, body, attachment, r.now())
	if err != nil {
		return nil, err
	}

	seq, err := r.seq.Next()
	if err != nil {
		r.log.Error("Failed to allocate message sequence", "error", err)
		return nil, apperrors.Upstream("allocate message sequence", err)
	}
	msg.Seq = int64(seq)
	stored := &storedMessage{Message: *msg, Seq: msg.Seq}

	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	key := messageKey(stored)
	err = r.update(func(txn *badger.Txn) error {
		if err := txn.Set(key, raw); err != nil {
			return err
		}
		return txn.Set(messageIndexKey(msg.ID), key)
	})
	if err != nil {
		r.log.Error("Failed to append message", "error", err)
		return nil, apperrors.Upstream("append message", err)
	}

	return msg, nil
}

func (r *BadgerMessageRepository) History(ctx context.Context, a, b string) ([]*domain.Message, error) {
	if err := domain.ValidatePair(a, b); err != nil {
		return nil, err
	}

	var messages []*domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		return scanConversation(txn, domain.ResolveConversation(a, b), func(_ []byte, msg *storedMessage) error {
			messages = append(messages, msg.message())
			return nil
		})
	})
	if err != nil {
		r.log.Error("Failed to load history", "error", err)
		return nil, apperrors.Upstream("load history", err)
	}

	return lo.Map(messages, func(m *domain.Message, _ int) *domain.Message {
		return m.Redacted()
	}), nil
}

func (r *BadgerMessageRepository) MarkRead(ctx context.Context, readerID, otherID string) ([]*domain.Message, error) {
	if err := domain.ValidatePair(readerID, otherID); err != nil {
		return nil, err
	}

	var updated []*domain.Message
	err := r.update(func(txn *badger.Txn) error {
		updated = updated[:0]
		readAt := r.now().UTC()

		type pending struct {
			key []byte
			msg *storedMessage
		}
		var changes []pending

		err := scanConversation(txn, domain.ResolveConversation(readerID, otherID), func(key []byte, msg *storedMessage) error {
			if msg.Read || msg.RecipientID != readerID || msg.SenderID != otherID {
				return nil
			}
			msg.Read = true
			msg.ReadAt = lo.ToPtr(readAt)
			changes = append(changes, pending{key: key, msg: msg})
			return nil
		})
		if err != nil {
			return err
		}

		for _, change := range changes {
			raw, err := json.Marshal(change.msg)
			if err != nil {
				return err
			}
			if err := txn.Set(change.key, raw); err != nil {
				return err
			}
			updated = append(updated, change.msg.message())
		}
		return nil
	})
	if err != nil {
		r.log.Error("Failed to mark messages as read", "error", err)
		return nil, apperrors.Upstream("mark read", err)
	}

	return lo.Map(updated, func(m *domain.Message, _ int) *domain.Message {
		return m.Redacted()
	}), nil
}

func (r *BadgerMessageRepository) SoftDelete(ctx context.Context, messageID, requesterID string) (*domain.Message, bool, error) {
	var (
		result  *domain.Message
		changed bool
	)

	err := r.update(func(txn *badger.Txn) error {
		key, msg, err := getByIndex(txn, messageID)
		if err != nil {
			return err
		}
		if msg.SenderID != requesterID {
			return fmt.Errorf("delete message %s: %w", messageID, apperrors.ErrForbidden)
		}
		if msg.Deleted {
			result, changed = msg.message(), false
			return nil
		}

		msg.Deleted = true
		msg.DeletedAt = lo.ToPtr(r.now().UTC())
		raw, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := txn.Set(key, raw); err != nil {
			return err
		}
		result, changed = msg.message(), true
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrForbidden) {
			return nil, false, err
		}
		r.log.Error("Failed to delete message", "error", err)
		return nil, false, apperrors.Upstream("delete message", err)
	}

	return result.Redacted(), changed, nil
}

func (r *BadgerMessageRepository) GetByID(ctx context.Context, messageID string) (*domain.Message, error) {
	var result *domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		_, msg, err := getByIndex(txn, messageID)
		if err != nil {
			return err
		}
		result = msg.message()
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		r.log.Error("Failed to get message", "error", err)
		return nil, apperrors.Upstream("get message", err)
	}

	return result.Redacted(), nil
}

func (r *BadgerMessageRepository) CountUnread(ctx context.Context, readerID, otherID string) (int, error) {
	if err := domain.ValidatePair(readerID, otherID); err != nil {
		return 0, err
	}

	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		return scanConversation(txn, domain.ResolveConversation(readerID, otherID), func(_ []byte, msg *storedMessage) error {
			if !msg.Read && msg.RecipientID == readerID && msg.SenderID == otherID {
				count++
			}
			return nil
		})
	})
	if err != nil {
		r.log.Error("Failed to count unread messages", "error", err)
		return 0, apperrors.Upstream("count unread", err)
	}

	return count, nil
}

// update повторяет транзакцию при конфликте записи
func (r *BadgerMessageRepository) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < badgerUpdateRetries; attempt++ {
		err = r.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		r.log.Debug("Badger transaction conflict, retrying", "attempt", attempt+1)
	}
	return err
}

func (m *storedMessage) message() *domain.Message {
	msg := m.Message
	msg.Seq = m.Seq
	return &msg
}

func scanConversation(txn *badger.Txn, key domain.ConversationKey, fn func(key []byte, msg *storedMessage) error) error {
	prefix := conversationPrefix(key)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		msg := &storedMessage{}
		err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, msg)
		})
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), msg); err != nil {
			return err
		}
	}
	return nil
}

func getByIndex(txn *badger.Txn, messageID string) ([]byte, *storedMessage, error) {
	indexItem, err := txn.Get(messageIndexKey(messageID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, fmt.Errorf("message %s: %w", messageID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}

	key, err := indexItem.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}

	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, fmt.Errorf("message %s: %w", messageID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}

	msg := &storedMessage{}
	if err := item.Value(func(value []byte) error {
		return json.Unmarshal(value, msg)
	}); err != nil {
		return nil, nil, err
	}
	return key, msg, nil
}
