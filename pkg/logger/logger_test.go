package logger

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrom_FallsBackToDefault(t *testing.T) {
	require.NotNil(t, From(context.Background()))
}

func TestWithAttrs_StoresDerivedLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := With(context.Background(), NewWithWriter("production", &buf))

	ctx, _ = WithAttrs(ctx, "call_id", "call-1")
	From(ctx).Info("hello")

	assert.Contains(t, buf.String(), `"call_id":"call-1"`)
}

func TestNew_DebugOnlyInLocalEnvs(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("production", &buf).Debug("hidden")
	assert.Empty(t, buf.String())

	NewWithWriter("dev", &buf).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestMiddleware_PropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	r := gin.New()
	r.Use(Middleware(NewWithWriter("production", &buf)))
	r.GET("/x", func(c *gin.Context) {
		From(c.Request.Context()).Info("inside handler")
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "rid-123")
	r.ServeHTTP(w, req)

	assert.Equal(t, "rid-123", w.Header().Get(headerRequestID))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Contains(t, line, `"request_id":"rid-123"`)
	}
}

func TestMiddleware_GeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware(Discard()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}
