package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	apperrors "tutor_chat/pkg/errors"
)

// RedactedBody показывается вместо текста удаленного сообщения
const RedactedBody = "This message was deleted"

type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentVideo AttachmentKind = "video"
)

func (k AttachmentKind) Valid() bool {
	return k == AttachmentImage || k == AttachmentVideo
}

type Attachment struct {
	URL  string         `json:"url"`
	Kind AttachmentKind `json:"kind"`
}

func (a *Attachment) validate() error {
	if strings.TrimSpace(a.URL) == "" {
		return apperrors.Validationf("attachment url is required")
	}
	if !a.Kind.Valid() {
		return apperrors.Validationf("unsupported attachment kind %q", a.Kind)
	}
	return nil
}

type Message struct {
	ID              string          `json:"id"`
	ConversationKey ConversationKey `json:"conversationKey"`
	SenderID        string          `json:"senderId"`
	RecipientID     string          `json:"recipientId"`
	Body            string          `json:"message"`
	FileURL         string          `json:"fileUrl,omitempty"`
	FileType        AttachmentKind  `json:"fileType,omitempty"`
	Read            bool            `json:"read"`
	ReadAt          *time.Time      `json:"readAt"`
	Deleted         bool            `json:"deleted"`
	DeletedAt       *time.Time      `json:"deletedAt,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	Seq             int64           `json:"-"`
}

// NewMessage проверяет входные данные и собирает новое сообщение.
// Пустой текст допустим только вместе с вложением.
func NewMessage(senderID, recipientID, body string, attachment *Attachment, now time.Time) (*Message, error) {
	if err := ValidatePair(senderID, recipientID); err != nil {
		return nil, err
	}

	// текст хранится как есть, пробелы учитываются только при проверке на пустоту
	if attachment != nil {
		if err := attachment.validate(); err != nil {
			return nil, err
		}
	} else if strings.TrimSpace(body) == "" {
		return nil, apperrors.Validationf("message body or attachment is required")
	}

	msg := &Message{
		ID:              uuid.NewString(),
		ConversationKey: ResolveConversation(senderID, recipientID),
		SenderID:        senderID,
		RecipientID:     recipientID,
		Body:            body,
		Timestamp:       now.UTC().Truncate(time.Microsecond),
	}
	if attachment != nil {
		msg.FileURL = attachment.URL
		msg.FileType = attachment.Kind
	}
	return msg, nil
}

func (m *Message) Attachment() *Attachment {
	if m.FileURL == "" {
		return nil
	}
	return &Attachment{URL: m.FileURL, Kind: m.FileType}
}

// Redacted возвращает копию, безопасную для отдачи клиенту:
// у удаленного сообщения текст заменен маркером, вложение скрыто.
func (m *Message) Redacted() *Message {
	out := *m
	if out.Deleted {
		out.Body = RedactedBody
		out.FileURL = ""
		out.FileType = ""
	}
	return &out
}

// Excerpt - короткий текст для уведомления
func (m *Message) Excerpt(limit int) string {
	if m.Body == "" {
		switch m.FileType {
		case AttachmentImage:
			return "Sent an image"
		case AttachmentVideo:
			return "Sent a video"
		}
	}
	if utf8.RuneCountInString(m.Body) <= limit {
		return m.Body
	}
	return string([]rune(m.Body)[:limit])
}
