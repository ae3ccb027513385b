package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"tutor_chat/internal/domain"
	"tutor_chat/pkg/jwt"
	"tutor_chat/pkg/logger"
)

const participantKey = "participant"

// AuthMiddleware проверяет JWT, выпущенные Auth-сервисом платформы.
// Личность участника берется только из токена.
type AuthMiddleware struct {
	secret string
	issuer string
	log    logger.Logger
}

func NewAuthMiddleware(secret, issuer string, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret: secret,
		issuer: issuer,
		log:    log,
	}
}

// RequireAuth принимает "Authorization: Bearer <token>" или ?token= (браузерный
// WebSocket не умеет слать заголовки)
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, err := jwt.ValidateToken(token, m.secret, m.issuer)
		if err != nil {
			m.log.Warn("Token validation failed", "error", err, "ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		if err := domain.ValidateParticipantID(claims.UserID); err != nil {
			m.log.Warn("Token carries unusable user id", "user_id", claims.UserID)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(participantKey, domain.Participant{
			ID:          claims.UserID,
			Role:        claims.Role,
			DisplayName: claims.DisplayName,
		})
		c.Next()
	}
}

// ParticipantFromContext возвращает участника, установленного RequireAuth
func ParticipantFromContext(c *gin.Context) (domain.Participant, bool) {
	value, exists := c.Get(participantKey)
	if !exists {
		return domain.Participant{}, false
	}
	participant, ok := value.(domain.Participant)
	return participant, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}

	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}
