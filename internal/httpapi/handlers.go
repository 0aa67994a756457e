package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"estate-inbox/internal/audit"
	"estate-inbox/internal/auth"
	"estate-inbox/internal/inbox"
	"estate-inbox/internal/media"
	"estate-inbox/internal/notify"
	"estate-inbox/internal/property"
	"estate-inbox/internal/validation"
	"estate-inbox/internal/whatsapp"

	"github.com/gin-gonic/gin"
)

// Service interfaces the handlers depend on. The concrete services live in
// internal/auth, internal/whatsapp, internal/inbox and internal/property.

type AuthService interface {
	Login(ctx context.Context, form auth.LoginForm) (auth.User, error)
	Register(ctx context.Context, form auth.RegistrationForm) (auth.User, error)
	Logout(ctx context.Context) error
	ForgotPassword(ctx context.Context, form auth.ForgotPasswordForm) error
	ResetPassword(ctx context.Context, form auth.ResetPasswordForm) error
	Me(ctx context.Context) (auth.User, error)
	Refresh(ctx context.Context) error
}

type AccountService interface {
	FetchAll(ctx context.Context) []whatsapp.Account
	FetchOne(ctx context.Context, id string) (*whatsapp.Account, error)
	Create(ctx context.Context, form whatsapp.AccountForm) (whatsapp.Account, error)
	Update(ctx context.Context, id string, patch whatsapp.AccountPatch) (whatsapp.Account, error)
	Verify(ctx context.Context, id string) (whatsapp.Account, error)
	Activate(ctx context.Context, id string) (whatsapp.Account, error)
	Deactivate(ctx context.Context, id string) (whatsapp.Account, error)
	Delete(ctx context.Context, id string) error
	LastError() error
}

type LinkService interface {
	Link(ctx context.Context) error
}

type ConversationService interface {
	ListConversations(ctx context.Context, accountID string) ([]whatsapp.Conversation, error)
	GetConversation(ctx context.Context, id string) (whatsapp.Conversation, error)
	SendText(ctx context.Context, conversationID, content, accountID string) (whatsapp.Message, error)
	SendMedia(ctx context.Context, conversationID, accountID string, m whatsapp.MediaMessage) (whatsapp.Message, error)
	SendTemplate(ctx context.Context, conversationID, accountID string, t whatsapp.TemplateMessage) (whatsapp.Message, error)
	MarkAsRead(ctx context.Context, conversationID, accountID string) error
	Archive(ctx context.Context, conversationID string, archived bool) error
	ListTemplates(ctx context.Context, accountID string) ([]whatsapp.Template, error)
}

type InboxService interface {
	List(ctx context.Context) ([]inbox.Conversation, error)
	Conversation(ctx context.Context, id string) (inbox.Conversation, error)
}

type PropertyService interface {
	List(ctx context.Context) ([]property.Property, error)
	ListPublic(ctx context.Context) ([]property.Property, error)
	Get(ctx context.Context, id string) (property.Property, error)
	Create(ctx context.Context, f property.Form) (property.Property, error)
	Update(ctx context.Context, id string, f property.Form) (property.Property, error)
	Delete(ctx context.Context, id string) error
}

type MediaStager interface {
	Stage(ctx context.Context, conversationID, filename, contentType string, r io.Reader) (media.Object, error)
}

type ActivityLog interface {
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

type Toasts interface {
	Drain() []notify.Toast
}

type Session interface {
	IsAuthenticated(ctx context.Context) bool
	Locale(ctx context.Context) string
	SetLocale(ctx context.Context, locale string) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth          AuthService
	Session       Session
	Accounts      AccountService
	Linker        LinkService
	Conversations ConversationService
	Inbox         InboxService
	Properties    PropertyService
	Media         MediaStager
	Activity      ActivityLog
	Toasts        Toasts
}

func unavailable(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": what + " not configured"})
}

// bind decodes the JSON body into dst; binding tags are checked by gin's
// validator, which validation.RegisterGin configures.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var ve validation.Errors
		if errors.As(validation.Translate(err), &ve) {
			writeError(c, ve)
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return false
	}
	return true
}

// --- Session ---

func (h Handlers) Root(c *gin.Context) {
	ctx := c.Request.Context()
	body := gin.H{"service": "estate-inbox", "authenticated": h.Session != nil && h.Session.IsAuthenticated(ctx)}
	if email, err := auth.Email(ctx); err == nil {
		body["email"] = email
	}
	c.JSON(http.StatusOK, body)
}

func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		unavailable(c, "auth")
		return
	}
	var form auth.LoginForm
	if !bind(c, &form) {
		return
	}
	u, err := h.Auth.Login(c.Request.Context(), form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) Register(c *gin.Context) {
	if h.Auth == nil {
		unavailable(c, "auth")
		return
	}
	var form auth.RegistrationForm
	if !bind(c, &form) {
		return
	}
	u, err := h.Auth.Register(c.Request.Context(), form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h Handlers) Logout(c *gin.Context) {
	if h.Auth == nil {
		unavailable(c, "auth")
		return
	}
	if err := h.Auth.Logout(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) ForgotPassword(c *gin.Context) {
	if h.Auth == nil {
		unavailable(c, "auth")
		return
	}
	var form auth.ForgotPasswordForm
	if !bind(c, &form) {
		return
	}
	if err := h.Auth.ForgotPassword(c.Request.Context(), form); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h Handlers) ResetPassword(c *gin.Context) {
	if h.Auth == nil {
		unavailable(c, "auth")
		return
	}
	var form auth.ResetPasswordForm
	if !bind(c, &form) {
		return
	}
	if err := h.Auth.ResetPassword(c.Request.Context(), form); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) Me(c *gin.Context) {
	if h.Auth == nil {
		unavailable(c, "auth")
		return
	}
	u, err := h.Auth.Me(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Refresh renews the access token from the refresh cookie and returns the
// signed-in user.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		unavailable(c, "auth")
		return
	}
	ctx := c.Request.Context()
	if err := h.Auth.Refresh(ctx); err != nil {
		writeError(c, err)
		return
	}
	u, err := h.Auth.Me(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type localeRequest struct {
	Locale string `json:"locale" binding:"required,oneof=en es"`
}

func (h Handlers) SetLocale(c *gin.Context) {
	if h.Session == nil {
		unavailable(c, "session")
		return
	}
	var req localeRequest
	if !bind(c, &req) {
		return
	}
	if err := h.Session.SetLocale(c.Request.Context(), req.Locale); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locale": h.Session.Locale(c.Request.Context())})
}

// --- Notifications and activity ---

// Notifications hands the pending toasts to the UI and forgets them.
func (h Handlers) Notifications(c *gin.Context) {
	if h.Toasts == nil {
		c.JSON(http.StatusOK, gin.H{"items": []notify.Toast{}})
		return
	}
	items := h.Toasts.Drain()
	if items == nil {
		items = []notify.Toast{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h Handlers) RecentActivity(c *gin.Context) {
	if h.Activity == nil {
		unavailable(c, "audit")
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}
	events, err := h.Activity.Recent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": events})
}
