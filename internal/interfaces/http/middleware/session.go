package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/infrastructure/logger"
)

// Cart session header and gin context key
const (
	CartSessionHeader = "X-Cart-Session"
	CartSessionKey    = "cart_session_id"
)

const maxSessionIDLength = 128

// CartSession resolves the browsing session of a request. A missing or
// malformed X-Cart-Session header starts a new session; the id in use is
// always echoed back so the client can keep it.
func CartSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(CartSessionHeader)
		if !validSessionID(sessionID) {
			sessionID = uuid.NewString()
		}

		c.Set(CartSessionKey, sessionID)
		c.Writer.Header().Set(CartSessionHeader, sessionID)

		ctx, reqLogger := logger.WithSessionID(c.Request.Context(), logger.FromContext(c.Request.Context()), sessionID)
		c.Set(logger.GinLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetCartSession returns the session id resolved by CartSession
func GetCartSession(c *gin.Context) string {
	return c.GetString(CartSessionKey)
}

func validSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
