package domain

import (
	"time"
)

type AuditLog struct {
	ID              int64                  `json:"id"`
	EventTime       time.Time              `json:"event_time"`
	ActorID         string                 `json:"actor_id"`
	ActorRole       string                 `json:"actor_role"`
	ConversationKey ConversationKey        `json:"conversation_key"`
	EventType       string                 `json:"event_type"`
	Payload         map[string]interface{} `json:"payload"`
}

const (
	EventTypeMessageDeleted = "MESSAGE_DELETED"
)
