package middleware

import (
	"github.com/gin-gonic/gin"
	"tutor_chat/pkg/errors"
	"tutor_chat/pkg/logger"
)

// ErrorHandler переводит ошибку из c.Error в JSON-ответ. Детали ошибок
// хранилища наружу не отдаются.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		statusCode := errors.HTTPStatusFromError(err)

		message := err.Error()
		switch errors.Code(err) {
		case errors.CodeUpstream:
			message = "Service temporarily unavailable"
		case errors.CodeInternal:
			message = "Internal server error"
		}
		if statusCode >= 500 {
			log.Error("Request failed", "path", c.FullPath(), "error", err)
		}

		c.JSON(statusCode, errors.NewAPIError(message, errors.Code(err)))
	}
}
