package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"tutor_chat/internal/service"
	"tutor_chat/pkg/logger"
)

type PresenceHandler struct {
	presenceService service.PresenceService
	log             logger.Logger
}

func NewPresenceHandler(presenceService service.PresenceService, log logger.Logger) *PresenceHandler {
	return &PresenceHandler{
		presenceService: presenceService,
		log:             log,
	}
}

func (h *PresenceHandler) GetPresence(c *gin.Context) {
	presence, err := h.presenceService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, presence)
}
