package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewAPI_Prefix(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"", "/api/v1"},
		{"v2", "/api/v2"},
		{" /v3/ ", "/api/v3"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, NewAPI(tt.version, nil).Prefix())
		})
	}
}

func TestAPI_Mount(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	engine := gin.New()

	NewAPI("", zap.New(core)).
		Add(Group{Name: "test", Prefix: "/test", Routes: []Route{
			get("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") }),
		}}).
		Mount(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/test/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	entries := logs.FilterMessage("Route group registered").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "test", fields["group"])
		assert.Equal(t, "/api/v1/test", fields["prefix"])
		assert.Equal(t, int64(1), fields["routes"])
	}
}

func TestGroup_Mount(t *testing.T) {
	t.Run("registers every method", func(t *testing.T) {
		engine := gin.New()
		ok := func(c *gin.Context) { c.String(http.StatusOK, c.Request.Method) }
		Group{Prefix: "/items", Routes: []Route{
			get("", ok),
			post("", ok),
			patch("/:id", ok),
			del("/:id", ok),
		}}.Mount(engine.Group("/api/v1"))

		for _, tt := range []struct{ method, path string }{
			{"GET", "/api/v1/items"},
			{"POST", "/api/v1/items"},
			{"PATCH", "/api/v1/items/1"},
			{"DELETE", "/api/v1/items/1"},
		} {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusOK, w.Code, "%s %s", tt.method, tt.path)
			assert.Equal(t, tt.method, w.Body.String())
		}
	})

	t.Run("group middleware runs before handlers", func(t *testing.T) {
		engine := gin.New()
		Group{
			Prefix:     "/guarded",
			Middleware: []gin.HandlerFunc{func(c *gin.Context) { c.AbortWithStatus(http.StatusTeapot) }},
			Routes:     []Route{get("/x", func(c *gin.Context) { c.Status(http.StatusOK) })},
		}.Mount(engine)

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", "/guarded/x", nil))
		assert.Equal(t, http.StatusTeapot, w.Code)
	})
}
