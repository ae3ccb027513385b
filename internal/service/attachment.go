package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"tutor_chat/internal/domain"
	apperrors "tutor_chat/pkg/errors"
	"tutor_chat/pkg/logger"
)

// ObjectStore - хранилище загруженных файлов (S3 в проде)
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

type AttachmentService interface {
	Upload(ctx context.Context, ownerID string, file io.Reader) (*domain.Attachment, error)
}

type attachmentService struct {
	store    ObjectStore
	maxBytes int64
	log      logger.Logger
}

func NewAttachmentService(store ObjectStore, maxBytes int64, log logger.Logger) AttachmentService {
	return &attachmentService{store: store, maxBytes: maxBytes, log: log}
}

// Upload определяет тип по содержимому, а не по имени файла или заголовкам клиента
func (s *attachmentService) Upload(ctx context.Context, ownerID string, file io.Reader) (*domain.Attachment, error) {
	if err := domain.ValidateParticipantID(ownerID); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	if len(data) == 0 {
		return nil, apperrors.Validationf("attachment is empty")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperrors.Validationf("attachment exceeds %d bytes", s.maxBytes)
	}

	mtype := mimetype.Detect(data)
	kind, ok := attachmentKind(mtype)
	if !ok {
		return nil, apperrors.Validationf("unsupported attachment type %s", mtype.String())
	}

	key := fmt.Sprintf("attachments/%s/%s%s", ownerID, uuid.NewString(), mtype.Extension())
	url, err := s.store.Upload(ctx, key, mtype.String(), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	s.log.Info("Attachment uploaded", "owner_id", ownerID, "kind", kind, "size", len(data))
	return &domain.Attachment{URL: url, Kind: kind}, nil
}

func attachmentKind(mtype *mimetype.MIME) (domain.AttachmentKind, bool) {
	for m := mtype; m != nil; m = m.Parent() {
		switch {
		case strings.HasPrefix(m.String(), "image/"):
			return domain.AttachmentImage, true
		case strings.HasPrefix(m.String(), "video/"):
			return domain.AttachmentVideo, true
		}
	}
	return "", false
}
