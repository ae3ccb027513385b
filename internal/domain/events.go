package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	apperrors "tutor_chat/pkg/errors"
)

// События клиент -> сервер
const (
	EventJoinRoom      = "joinRoom"
	EventLeaveRoom     = "leaveRoom"
	EventMessage       = "message"
	EventMessageRead   = "message_read"
	EventDeleteMessage = "delete_message"
)

// События сервер -> клиент
const (
	EventReceiveMessage = "receive_message"
	EventMessageDeleted = "message_deleted"
	EventNotification   = "notification"
	EventRoomJoined     = "room_joined"
	EventError          = "error"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Envelope - формат websocket фрейма
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type ServerEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// ClientEvent - закрытый набор событий, которые принимает сервер
type ClientEvent interface {
	EventName() string
}

type Pair struct {
	SenderID    string `json:"senderId" validate:"required,max=128,excludes=:"`
	RecipientID string `json:"recipientId" validate:"required,max=128,excludes=:,nefield=SenderID"`
}

func (p Pair) Conversation() ConversationKey {
	return ResolveConversation(p.SenderID, p.RecipientID)
}

type JoinRoomEvent struct {
	Pair
}

type LeaveRoomEvent struct {
	Pair
}

type MessageReadEvent struct {
	Pair
}

type SendMessageEvent struct {
	Pair
	Message   string `json:"message"`
	FileURL   string `json:"fileUrl" validate:"required_with=FileType,omitempty,url"`
	FileType  string `json:"fileType" validate:"required_with=FileURL,omitempty,oneof=image video"`
	Timestamp string `json:"timestamp"`
}

func (e *SendMessageEvent) Attachment() *Attachment {
	if e.FileURL == "" {
		return nil
	}
	return &Attachment{URL: e.FileURL, Kind: AttachmentKind(e.FileType)}
}

type DeleteMessageEvent struct {
	MessageID string `json:"messageId" validate:"required,max=128"`
	SenderID  string `json:"senderId"`
}

func (*JoinRoomEvent) EventName() string      { return EventJoinRoom }
func (*LeaveRoomEvent) EventName() string     { return EventLeaveRoom }
func (*MessageReadEvent) EventName() string   { return EventMessageRead }
func (*SendMessageEvent) EventName() string   { return EventMessage }
func (*DeleteMessageEvent) EventName() string { return EventDeleteMessage }

// DecodeClientEvent разбирает фрейм и проверяет payload.
// Возвращает имя события даже при ошибке, чтобы клиенту ушел ответ с контекстом.
func DecodeClientEvent(raw []byte) (string, ClientEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, apperrors.Validationf("malformed frame: %v", err)
	}

	var evt ClientEvent
	switch env.Event {
	case EventJoinRoom:
		evt = &JoinRoomEvent{}
	case EventLeaveRoom:
		evt = &LeaveRoomEvent{}
	case EventMessage:
		evt = &SendMessageEvent{}
	case EventMessageRead:
		evt = &MessageReadEvent{}
	case EventDeleteMessage:
		evt = &DeleteMessageEvent{}
	default:
		return env.Event, nil, apperrors.Validationf("unknown event %q", env.Event)
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return env.Event, nil, apperrors.Validationf("%s: data is required", env.Event)
	}
	if err := json.Unmarshal(env.Data, evt); err != nil {
		return env.Event, nil, apperrors.Validationf("%s: malformed data: %v", env.Event, err)
	}
	if err := validate.Struct(evt); err != nil {
		return env.Event, nil, apperrors.Validationf("%s: %s", env.Event, describeValidation(err))
	}

	return env.Event, evt, nil
}

func describeValidation(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	return strings.Join(lo.Map(ve, func(fe validator.FieldError, _ int) string {
		return fe.Field() + " failed on " + fe.Tag()
	}), ", ")
}

// Payload-ы событий сервера

type MessageReadPayload struct {
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	ReadAt      time.Time `json:"readAt"`
}

type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
}

type NotificationPayload struct {
	SenderID        string          `json:"senderId"`
	SenderName      string          `json:"senderName"`
	Excerpt         string          `json:"excerpt"`
	ConversationKey ConversationKey `json:"conversationKey"`
	MessageID       string          `json:"messageId"`
}

type RoomJoinedPayload struct {
	ConversationKey ConversationKey `json:"conversationKey"`
}

type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewReceiveMessageEvent(msg *Message) ServerEvent {
	return ServerEvent{Event: EventReceiveMessage, Data: msg.Redacted()}
}

func NewMessageReadEvent(senderID, recipientID string, readAt time.Time) ServerEvent {
	return ServerEvent{Event: EventMessageRead, Data: MessageReadPayload{
		SenderID:    senderID,
		RecipientID: recipientID,
		ReadAt:      readAt,
	}}
}

func NewMessageDeletedEvent(messageID string) ServerEvent {
	return ServerEvent{Event: EventMessageDeleted, Data: MessageDeletedPayload{MessageID: messageID}}
}

func NewNotificationEvent(payload NotificationPayload) ServerEvent {
	return ServerEvent{Event: EventNotification, Data: payload}
}

func NewRoomJoinedEvent(key ConversationKey) ServerEvent {
	return ServerEvent{Event: EventRoomJoined, Data: RoomJoinedPayload{ConversationKey: key}}
}

// NewErrorEvent не раскрывает клиенту детали ошибок хранилища
func NewErrorEvent(event string, err error) ServerEvent {
	code := apperrors.Code(err)
	message := err.Error()
	switch code {
	case apperrors.CodeUpstream:
		message = "service temporarily unavailable"
	case apperrors.CodeInternal:
		message = "internal error"
	}

	return ServerEvent{Event: EventError, Data: ErrorPayload{
		Event:   event,
		Code:    code,
		Message: message,
	}}
}
