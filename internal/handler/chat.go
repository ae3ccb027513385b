package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"tutor_chat/internal/domain"
	"tutor_chat/internal/middleware"
	"tutor_chat/internal/service"
	apperrors "tutor_chat/pkg/errors"
	"tutor_chat/pkg/logger"
)

// ChatHandler - REST-вариант операций чата. Ошибки уходят в ErrorHandler через c.Error.
type ChatHandler struct {
	messagingService service.MessagingService
	log              logger.Logger
}

func NewChatHandler(messagingService service.MessagingService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		messagingService: messagingService,
		log:              log,
	}
}

// conversationPeer достает вызывающего и собеседника из :participantId
func conversationPeer(c *gin.Context) (domain.Participant, string, bool) {
	caller, ok := middleware.ParticipantFromContext(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return domain.Participant{}, "", false
	}

	other := c.Param("participantId")
	if err := domain.ValidatePair(caller.ID, other); err != nil {
		_ = c.Error(err)
		return domain.Participant{}, "", false
	}
	return caller, other, true
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	caller, other, ok := conversationPeer(c)
	if !ok {
		return
	}

	messages, err := h.messagingService.History(c.Request.Context(), caller.ID, other)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversationKey": domain.ResolveConversation(caller.ID, other),
		"messages":        messages,
	})
}

func (h *ChatHandler) GetSummary(c *gin.Context) {
	caller, other, ok := conversationPeer(c)
	if !ok {
		return
	}

	summary, err := h.messagingService.Summary(c.Request.Context(), caller.ID, other)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	caller, other, ok := conversationPeer(c)
	if !ok {
		return
	}

	updated, err := h.messagingService.AcknowledgeRead(c.Request.Context(), caller.ID, other)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": len(updated)})
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	caller, ok := middleware.ParticipantFromContext(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}

	message, err := h.messagingService.DeleteMessage(c.Request.Context(), caller, c.Param("messageId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, message)
}
