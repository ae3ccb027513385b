package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"tutor_chat/internal/middleware"
	"tutor_chat/internal/service"
	apperrors "tutor_chat/pkg/errors"
	"tutor_chat/pkg/logger"
)

type AttachmentHandler struct {
	attachmentService service.AttachmentService
	log               logger.Logger
}

func NewAttachmentHandler(attachmentService service.AttachmentService, log logger.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachmentService: attachmentService,
		log:               log,
	}
}

// Upload - multipart поле "file". Ссылку из ответа клиент кладет в fileUrl сообщения.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	participant, ok := middleware.ParticipantFromContext(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		_ = c.Error(apperrors.Validationf("file is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		h.log.Error("Failed to open uploaded file", "error", err)
		_ = c.Error(err)
		return
	}
	defer file.Close()

	attachment, err := h.attachmentService.Upload(c.Request.Context(), participant.ID, file)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, attachment)
}
