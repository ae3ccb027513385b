package realtime

import (
	"tutor_chat/internal/domain"
	"tutor_chat/pkg/logger"
)

// Deliver отправляет событие каждому соединению из снимка и возвращает число доставок.
// Ошибка одного соединения не влияет на остальные: оно закрывается как медленный потребитель.
func Deliver(conns []Conn, event domain.ServerEvent, log logger.Logger) int {
	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(event); err != nil {
			log.Warn("Dropping connection after failed delivery",
				"event", event.Event,
				"connection_id", conn.ID(),
				"participant_id", conn.ParticipantID(),
				"error", err,
			)
			_ = conn.Close()
			continue
		}
		delivered++
	}
	return delivered
}
