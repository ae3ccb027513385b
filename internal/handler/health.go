package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"tutor_chat/internal/realtime"
)

type HealthHandler struct {
	registry *realtime.Registry
}

func NewHealthHandler(registry *realtime.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"service":       "tutor-chat",
		"connections":   h.registry.ConnectionCount(),
		"conversations": h.registry.ConversationCount(),
	})
}
