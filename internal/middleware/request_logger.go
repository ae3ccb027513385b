package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"tutor_chat/pkg/logger"
)

func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		// query не пишем: в ней может быть токен
		fields := []interface{}{
			"ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}
		if participant, ok := ParticipantFromContext(c); ok {
			fields = append(fields, "participant_id", participant.ID)
		}

		if c.Writer.Status() >= 500 {
			log.Warn("Request", fields...)
			return
		}
		log.Info("Request", fields...)
	}
}
