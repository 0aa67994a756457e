package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"estate-inbox/internal/httpapi"
	"estate-inbox/internal/session"

	"github.com/gin-gonic/gin"
)

func newRouter(t *testing.T) (*gin.Engine, *session.State) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	state := session.New(session.NewMemoryStore(), func(token string) (session.Claims, error) {
		return session.Claims{UserID: "u-1", Role: token, ExpiresAt: time.Now().Add(time.Hour)}, nil
	})
	callback := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	r := gin.New()
	registerRoutes(r, httpapi.Handlers{}, state, callback)
	return r, state
}

func code(r http.Handler, method, path string) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w.Code
}

func TestRoutes_PublicWithoutSession(t *testing.T) {
	r, _ := newRouter(t)
	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/oauth/callback?state=x", http.StatusTeapot},
		{http.MethodGet, "/properties/public", http.StatusServiceUnavailable},
		{http.MethodPost, "/auth/login", http.StatusServiceUnavailable},
		{http.MethodPost, "/auth/refresh", http.StatusServiceUnavailable},
		{http.MethodPost, "/auth/logout", http.StatusUnauthorized},
		{http.MethodGet, "/whatsapp/accounts", http.StatusUnauthorized},
		{http.MethodGet, "/inbox/conversations", http.StatusUnauthorized},
		{http.MethodGet, "/properties/p1", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		if got := code(r, tc.method, tc.path); got != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, got)
		}
	}
}

func TestRoutes_SessionAndRoles(t *testing.T) {
	r, state := newRouter(t)
	if _, err := state.Set(context.Background(), "viewer", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := code(r, http.MethodGet, "/whatsapp/accounts"); got != http.StatusServiceUnavailable {
		t.Fatalf("guard should pass a signed-in viewer, got %d", got)
	}
	if got := code(r, http.MethodDelete, "/properties/p1"); got != http.StatusForbidden {
		t.Fatalf("viewers cannot delete, got %d", got)
	}
	if got := code(r, http.MethodGet, "/activity"); got != http.StatusForbidden {
		t.Fatalf("activity is for managers, got %d", got)
	}

	if _, err := state.Set(context.Background(), "agent", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := code(r, http.MethodDelete, "/properties/p1"); got != http.StatusServiceUnavailable {
		t.Fatalf("agents pass the role check, got %d", got)
	}

	if err := state.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := code(r, http.MethodGet, "/whatsapp/accounts"); got != http.StatusUnauthorized {
		t.Fatalf("cleared session must be rejected, got %d", got)
	}
}
