package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/infrastructure/auth"
	"github.com/kiendrone/storefront/internal/infrastructure/logger"
	"github.com/kiendrone/storefront/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(token string) (*auth.Identity, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Identity), args.Error(1)
}

func newIdentityRouter(verifier TokenVerifier) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), OptionalIdentity(verifier))
	router.GET("/open", func(c *gin.Context) {
		id, ok := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{
			"signed_in": ok,
			"user_id":   id.String(),
			"ctx":       logger.GetUserID(c.Request.Context()),
		})
	})
	router.GET("/closed", RequireIdentity(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.False(t, resp.Success)
	return resp.Error
}

func TestOptionalIdentity(t *testing.T) {
	userID := uuid.New()

	t.Run("no token passes as guest", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		router := newIdentityRouter(verifier)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/open", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"signed_in":false`)
		verifier.AssertNotCalled(t, "Verify", mock.Anything)
	})

	t.Run("valid token attaches identity", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		verifier.On("Verify", "good").Return(&auth.Identity{UserID: userID, Email: "pilot@example.com"}, nil)
		router := newIdentityRouter(verifier)

		req := httptest.NewRequest("GET", "/open", nil)
		req.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"signed_in":true`)
		assert.Contains(t, w.Body.String(), `"user_id":"`+userID.String()+`"`)
		assert.Contains(t, w.Body.String(), `"ctx":"`+userID.String()+`"`)
		verifier.AssertExpectations(t)
	})

	t.Run("invalid token is refused", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		verifier.On("Verify", "bad").Return(nil, auth.ErrInvalidToken)
		router := newIdentityRouter(verifier)

		req := httptest.NewRequest("GET", "/open", nil)
		req.Header.Set("Authorization", "Bearer bad")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		info := decodeError(t, w)
		assert.Equal(t, dto.ErrCodeUnauthorized, info.Code)
		assert.NotEmpty(t, info.RequestID)
	})

	t.Run("expired token is reported as expired", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		verifier.On("Verify", "old").Return(nil, auth.ErrExpiredToken)
		router := newIdentityRouter(verifier)

		req := httptest.NewRequest("GET", "/open", nil)
		req.Header.Set("Authorization", "Bearer old")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenExpired, decodeError(t, w).Code)
	})
}

func TestRequireIdentity(t *testing.T) {
	t.Run("guest is refused", func(t *testing.T) {
		router := newIdentityRouter(new(MockTokenVerifier))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/closed", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeUnauthorized, decodeError(t, w).Code)
	})

	t.Run("signed in user passes", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		verifier.On("Verify", "good").Return(&auth.Identity{UserID: uuid.New()}, nil)
		router := newIdentityRouter(verifier)

		req := httptest.NewRequest("GET", "/closed", nil)
		req.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
