package domain

import (
	"strings"

	apperrors "tutor_chat/pkg/errors"
)

const (
	RoleLearner    = "learner"
	RoleInstructor = "instructor"
)

const maxParticipantIDLength = 128

// Participant - пользователь из токена Auth-сервиса
type Participant struct {
	ID          string `json:"id"`
	Role        string `json:"role,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Name возвращает отображаемое имя, а при его отсутствии id
func (p Participant) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

// ValidateParticipantID - id не может быть пустым и содержать разделитель ключа диалога
func ValidateParticipantID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return apperrors.Validationf("participant id is required")
	case len(id) > maxParticipantIDLength:
		return apperrors.Validationf("participant id is too long")
	case strings.Contains(id, conversationSeparator):
		return apperrors.Validationf("participant id must not contain %q", conversationSeparator)
	}
	return nil
}

// ValidatePair проверяет пару участников диалога
func ValidatePair(a, b string) error {
	if err := ValidateParticipantID(a); err != nil {
		return err
	}
	if err := ValidateParticipantID(b); err != nil {
		return err
	}
	if a == b {
		return apperrors.Validationf("sender and recipient must differ")
	}
	return nil
}
