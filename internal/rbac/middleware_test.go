package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"voice-campaigns/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveWithRole(role string, allowed ...string) int {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		if role != "" {
			ctx := auth.WithIdentity(c.Request.Context(), "u", role)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}, RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	if got := serveWithRole(RoleAdmin, RoleAnalyst); got != http.StatusOK {
		t.Fatalf("expected 200, got %d", got)
	}
}

func TestRequireAnyRole_AnalystCannotWrite(t *testing.T) {
	if got := serveWithRole(RoleAnalyst, Writers...); got != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", got)
	}
	if got := serveWithRole(RoleAnalyst, Readers...); got != http.StatusOK {
		t.Fatalf("expected 200, got %d", got)
	}
}

func TestRequireAnyRole_MissingRole(t *testing.T) {
	if got := serveWithRole("", Readers...); got != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", got)
	}
}

func TestValid(t *testing.T) {
	if !Valid(RoleOperator) || Valid("super_admin") {
		t.Fatalf("unexpected role validity")
	}
}
