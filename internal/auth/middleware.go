package auth

import (
	"estate-inbox/internal/session"

	"github.com/gin-gonic/gin"
)

// Identity injects the signed-in user into the request context when a
// session exists. It never rejects; enforcement belongs to internal/guard.
func Identity(state *session.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !state.IsAuthenticated(c.Request.Context()) {
			c.Next()
			return
		}
		claims, ok := state.Claims()
		if !ok {
			c.Next()
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.Email, claims.Role)
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)

		c.Next()
	}
}
