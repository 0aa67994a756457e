package guard

import (
	"context"
	"net/http"
	"strings"

	"estate-inbox/internal/auth"

	"github.com/gin-gonic/gin"
)

// PublicPaths are reachable without a session.
var PublicPaths = []string{
	"/",
	"/healthz",
	"/oauth/callback",
	"/auth/login",
	"/auth/register",
	"/auth/forgot-password",
	"/auth/reset-password",
	"/auth/refresh",
	"/properties/public",
}

// Sessions reports whether a usable session exists. *session.State
// satisfies it; a token missing from memory and the durable store counts
// as signed out.
type Sessions interface {
	IsAuthenticated(ctx context.Context) bool
}

// RequireSession rejects every request outside the allow-list when no
// session exists. An empty allow-list means PublicPaths.
func RequireSession(sessions Sessions, allow ...string) gin.HandlerFunc {
	if len(allow) == 0 {
		allow = PublicPaths
	}
	allowed := make(map[string]struct{}, len(allow))
	for _, p := range allow {
		allowed[normalize(p)] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[normalize(c.Request.URL.Path)]; ok {
			c.Next()
			return
		}
		if !sessions.IsAuthenticated(c.Request.Context()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "redirect": "/auth/login"})
			return
		}
		c.Next()
	}
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	return "/" + strings.Trim(p, "/")
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// admin bypasses all checks. Run it after auth.Identity.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if IsAdmin(role) {
			c.Next()
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
