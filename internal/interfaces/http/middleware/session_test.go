package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
)

func TestCartSession(t *testing.T) {
	router := gin.New()
	router.Use(CartSession())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"gin": GetCartSession(c),
			"ctx": logger.GetSessionID(c.Request.Context()),
		})
	})

	tests := []struct {
		name     string
		header   string
		keepSame bool
	}{
		{"missing header starts a session", "", false},
		{"valid id is kept", "sess_01-ABC", true},
		{"uuid is kept", "6f1d2b8e-4c1a-4a7b-9a53-0f5e2c3d4b1a", true},
		{"illegal characters start a new session", "bad id;drop", false},
		{"oversized id starts a new session", strings.Repeat("x", 129), false},
		{"max length id is kept", strings.Repeat("x", 128), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set(CartSessionHeader, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			got := w.Header().Get(CartSessionHeader)
			assert.Equal(t, http.StatusOK, w.Code)
			if tt.keepSame {
				assert.Equal(t, tt.header, got)
			} else {
				_, err := uuid.Parse(got)
				assert.NoError(t, err)
			}
			assert.Contains(t, w.Body.String(), `"gin":"`+got+`"`)
			assert.Contains(t, w.Body.String(), `"ctx":"`+got+`"`)
		})
	}
}
