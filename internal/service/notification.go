package service

import (
	"github.com/samber/lo"
	"tutor_chat/internal/domain"
	"tutor_chat/internal/realtime"
	"tutor_chat/pkg/logger"
)

const notificationExcerptLength = 80

// NotificationRouter уведомляет получателя о новом сообщении на тех вкладках,
// где диалог не открыт. Доставка best-effort, ошибки только логируются.
type NotificationRouter interface {
	Notify(sender domain.Participant, msg *domain.Message) int
}

type notificationRouter struct {
	registry *realtime.Registry
	log      logger.Logger
}

func NewNotificationRouter(registry *realtime.Registry, log logger.Logger) NotificationRouter {
	return &notificationRouter{registry: registry, log: log}
}

func (r *notificationRouter) Notify(sender domain.Participant, msg *domain.Message) int {
	targets := lo.Filter(r.registry.ParticipantConnections(msg.RecipientID), func(conn realtime.Conn, _ int) bool {
		return !r.registry.IsJoined(conn, msg.ConversationKey)
	})
	if len(targets) == 0 {
		return 0
	}

	event := domain.NewNotificationEvent(domain.NotificationPayload{
		SenderID:        msg.SenderID,
		SenderName:      sender.Name(),
		Excerpt:         msg.Excerpt(notificationExcerptLength),
		ConversationKey: msg.ConversationKey,
		MessageID:       msg.ID,
	})

	delivered := realtime.Deliver(targets, event, r.log)
	r.log.Debug("Notification routed",
		"recipient_id", msg.RecipientID, "message_id", msg.ID, "delivered", delivered)
	return delivered
}
