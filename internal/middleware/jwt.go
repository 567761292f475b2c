package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/student-idcard/internal/models"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
	applogger "github.com/noah-isme/student-idcard/pkg/logger"
	"github.com/noah-isme/student-idcard/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing JWT claims.
	ContextUserKey = "currentUser"
	// ContextOperatorKey holds the operator username for request logging.
	ContextOperatorKey = applogger.OperatorKey
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT admits requests carrying a valid operator bearer token. Rejections are
// logged at debug level without the token itself.
func JWT(auth tokenValidator, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		claims, err := authenticate(auth, c.GetHeader("Authorization"))
		if err != nil {
			logger.Debug("request rejected",
				zap.String("route", c.FullPath()),
				zap.String("reason", appErrors.FromError(err).Message),
			)
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(ContextOperatorKey, claims.Username)
		c.Next()
	}
}

func authenticate(auth tokenValidator, header string) (*models.JWTClaims, error) {
	if header == "" {
		return nil, appErrors.ErrUnauthorized
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return auth.ValidateToken(token)
}
