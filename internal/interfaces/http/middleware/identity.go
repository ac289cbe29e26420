package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/infrastructure/auth"
	"github.com/kiendrone/storefront/internal/infrastructure/logger"
	"github.com/kiendrone/storefront/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// IdentityKey is the gin context key holding the verified *auth.Identity
const IdentityKey = "identity"

// TokenVerifier verifies a bearer token
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// OptionalIdentity attaches the signed-in identity when a valid bearer
// token is present. Requests without a token pass through unchanged; a
// request whose token fails verification is refused with 401.
func OptionalIdentity(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			code, message := dto.ErrCodeUnauthorized, "Invalid authentication token"
			if errors.Is(err, auth.ErrExpiredToken) {
				code, message = dto.ErrCodeTokenExpired, "Authentication token has expired"
			}
			logger.GetGinLogger(c).Debug("Bearer token rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
			return
		}

		c.Set(IdentityKey, identity)
		ctx, reqLogger := logger.WithUserID(c.Request.Context(), logger.GetGinLogger(c), identity.UserID.String())
		c.Set(logger.GinLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireIdentity refuses requests that OptionalIdentity did not attach an
// identity to
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetIdentity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, "Sign in required", GetRequestID(c)))
			return
		}
		c.Next()
	}
}

// GetIdentity returns the identity attached by OptionalIdentity
func GetIdentity(c *gin.Context) (*auth.Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*auth.Identity)
	return identity, ok && identity != nil
}

// GetUserID returns the signed-in user's id, if any
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	identity, ok := GetIdentity(c)
	if !ok {
		return uuid.Nil, false
	}
	return identity.UserID, true
}
