package main

import (
	"net/http"

	"estate-inbox/internal/auth"
	"estate-inbox/internal/guard"
	"estate-inbox/internal/httpapi"
	"estate-inbox/internal/session"
	"estate-inbox/internal/whatsapp"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, state *session.State, oauthCallback http.Handler) {
	r.Use(auth.Identity(state))
	r.Use(guard.RequireSession(state))

	// public
	r.GET("/", h.Root)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET(whatsapp.CallbackPath, gin.WrapH(oauthCallback))
	r.GET("/properties/public", h.PublicProperties)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/register", h.Register)
		authGroup.POST("/forgot-password", h.ForgotPassword)
		authGroup.POST("/reset-password", h.ResetPassword)
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.GET("/me", h.Me)
	}

	// everything below requires a session (guard.RequireSession)
	r.PUT("/session/locale", h.SetLocale)
	r.GET("/notifications", h.Notifications)
	r.GET("/activity", guard.RequireAnyRole(guard.RoleManager), h.RecentActivity)

	editors := guard.RequireAnyRole(guard.Editors...)

	wa := r.Group("/whatsapp")
	{
		accounts := wa.Group("/accounts")
		accounts.GET("", h.ListAccounts)
		accounts.GET("/:id", h.GetAccount)
		accounts.GET("/:id/templates", h.ListTemplates)
		accounts.POST("", editors, h.CreateAccount)
		accounts.PATCH("/:id", editors, h.UpdateAccount)
		accounts.DELETE("/:id", editors, h.DeleteAccount)
		accounts.POST("/:id/verify", editors, h.VerifyAccount)
		accounts.POST("/:id/activate", editors, h.ActivateAccount)
		accounts.POST("/:id/deactivate", editors, h.DeactivateAccount)

		wa.POST("/link", editors, h.LinkAccount)

		conv := wa.Group("/conversations")
		conv.GET("", h.ListConversations)
		conv.GET("/:id", h.GetConversation)
		conv.POST("/:id/read", h.MarkConversationRead)
		conv.POST("/:id/archive", h.ArchiveConversation)
		conv.POST("/:id/messages/text", h.SendText)
		conv.POST("/:id/messages/media", h.SendMedia)
		conv.POST("/:id/messages/template", h.SendTemplate)
		conv.POST("/:id/attachments", h.UploadAttachment)
	}

	in := r.Group("/inbox")
	{
		in.GET("/conversations", h.ListInbox)
		in.GET("/conversations/:id", h.GetInboxConversation)
	}

	props := r.Group("/properties")
	{
		props.GET("", h.ListProperties)
		props.GET("/:id", h.GetProperty)
		props.POST("", editors, h.CreateProperty)
		props.PUT("/:id", editors, h.UpdateProperty)
		props.DELETE("/:id", editors, h.DeleteProperty)
	}
}
