package domain

import "time"

type Presence struct {
	UserID      string     `json:"userId"`
	Online      bool       `json:"online"`
	Connections int64      `json:"connections"`
	LastSeen    *time.Time `json:"lastSeen,omitempty"`
}

// ConversationSummary - сводка диалога для вызывающего участника
type ConversationSummary struct {
	ConversationKey ConversationKey `json:"conversationKey"`
	ParticipantID   string          `json:"participantId"`
	Unread          int             `json:"unread"`
	Online          bool            `json:"online"`
}
