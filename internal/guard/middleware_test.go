package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"estate-inbox/internal/auth"

	"github.com/gin-gonic/gin"
)

type sessions bool

func (s sessions) IsAuthenticated(context.Context) bool { return bool(s) }

func guarded(s Sessions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireSession(s))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/", ok)
	r.GET("/oauth/callback", ok)
	r.POST("/auth/login", ok)
	r.GET("/whatsapp/accounts", ok)
	return r
}

func do(r http.Handler, method, path string) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w.Code
}

func TestRequireSession_AllowList(t *testing.T) {
	r := guarded(sessions(false))
	for _, p := range []string{"/", "/oauth/callback", "/oauth/callback/"} {
		if code := do(r, http.MethodGet, p); code != http.StatusOK && code != http.StatusMovedPermanently {
			t.Fatalf("%s: expected public access, got %d", p, code)
		}
	}
	if code := do(r, http.MethodPost, "/auth/login"); code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", code)
	}
	if code := do(r, http.MethodGet, "/whatsapp/accounts"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	if code := do(r, http.MethodGet, "/unknown"); code != http.StatusUnauthorized {
		t.Fatalf("unknown routes are guarded too, got %d", code)
	}
}

func TestRequireSession_Authenticated(t *testing.T) {
	r := guarded(sessions(true))
	if code := do(r, http.MethodGet, "/whatsapp/accounts"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireSession_CustomAllowList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireSession(sessions(false), "/status"))
	r.GET("/status", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	if code := do(r, http.MethodGet, "/status"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := do(r, http.MethodGet, "/"); code != http.StatusUnauthorized {
		t.Fatalf("root is not in the custom list, got %d", code)
	}
}

func withRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "u", "u@estate.test", role))
		c.Next()
	}
}

func TestRequireAnyRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		role string
		want int
	}{
		{RoleAdmin, http.StatusOK},
		{RoleAgent, http.StatusOK},
		{RoleViewer, http.StatusForbidden},
		{"", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		r := gin.New()
		r.DELETE("/x", withRole(tc.role), RequireAnyRole(Editors...), func(c *gin.Context) { c.Status(http.StatusOK) })
		if code := do(r, http.MethodDelete, "/x"); code != tc.want {
			t.Fatalf("role %q: expected %d, got %d", tc.role, tc.want, code)
		}
	}
}
