package httpapi

import (
	"net/http"
	"strings"

	"estate-inbox/internal/whatsapp"

	"github.com/gin-gonic/gin"
)

// --- WhatsApp accounts ---

// ListAccounts never fails: a backend error leaves the cached list and is
// reported in "error" for the empty state.
func (h Handlers) ListAccounts(c *gin.Context) {
	if h.Accounts == nil {
		unavailable(c, "whatsapp")
		return
	}
	items := h.Accounts.FetchAll(c.Request.Context())
	resp := gin.H{"items": items, "error": nil}
	if err := h.Accounts.LastError(); err != nil {
		resp["error"] = errorMessage(err)
	}
	c.JSON(http.StatusOK, resp)
}

func (h Handlers) GetAccount(c *gin.Context) {
	if h.Accounts == nil {
		unavailable(c, "whatsapp")
		return
	}
	a, err := h.Accounts.FetchOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if a == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) CreateAccount(c *gin.Context) {
	if h.Accounts == nil {
		unavailable(c, "whatsapp")
		return
	}
	var form whatsapp.AccountForm
	if !bind(c, &form) {
		return
	}
	a, err := h.Accounts.Create(c.Request.Context(), form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h Handlers) UpdateAccount(c *gin.Context) {
	if h.Accounts == nil {
		unavailable(c, "whatsapp")
		return
	}
	var patch whatsapp.AccountPatch
	if !bind(c, &patch) {
		return
	}
	a, err := h.Accounts.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) DeleteAccount(c *gin.Context) {
	if h.Accounts == nil {
		unavailable(c, "whatsapp")
		return
	}
	if err := h.Accounts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) VerifyAccount(c *gin.Context) {
	h.accountAction(c, func(s AccountService, c *gin.Context) (whatsapp.Account, error) {
		return s.Verify(c.Request.Context(), c.Param("id"))
	})
}

func (h Handlers) ActivateAccount(c *gin.Context) {
	h.accountAction(c, func(s AccountService, c *gin.Context) (whatsapp.Account, error) {
		return s.Activate(c.Request.Context(), c.Param("id"))
	})
}

func (h Handlers) DeactivateAccount(c *gin.Context) {
	h.accountAction(c, func(s AccountService, c *gin.Context) (whatsapp.Account, error) {
		return s.Deactivate(c.Request.Context(), c.Param("id"))
	})
}

func (h Handlers) accountAction(c *gin.Context, fn func(AccountService, *gin.Context) (whatsapp.Account, error)) {
	if h.Accounts == nil {
		unavailable(c, "whatsapp")
		return
	}
	a, err := fn(h.Accounts, c)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// LinkAccount runs the embedded-signup flow. It blocks until the user
// finishes or abandons the Facebook dialog.
func (h Handlers) LinkAccount(c *gin.Context) {
	if h.Linker == nil {
		unavailable(c, "whatsapp linking")
		return
	}
	if err := h.Linker.Link(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"status": "linked"}
	if h.Accounts != nil {
		resp["items"] = h.Accounts.FetchAll(c.Request.Context())
	}
	c.JSON(http.StatusOK, resp)
}

func (h Handlers) ListTemplates(c *gin.Context) {
	if h.Conversations == nil {
		unavailable(c, "whatsapp")
		return
	}
	items, err := h.Conversations.ListTemplates(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// --- WhatsApp conversations ---

func (h Handlers) ListConversations(c *gin.Context) {
	if h.Conversations == nil {
		unavailable(c, "whatsapp")
		return
	}
	items, err := h.Conversations.ListConversations(c.Request.Context(), strings.TrimSpace(c.Query("accountId")))
	resp := gin.H{"items": items, "error": nil}
	if err != nil {
		resp["error"] = errorMessage(err)
	}
	c.JSON(http.StatusOK, resp)
}

func (h Handlers) GetConversation(c *gin.Context) {
	if h.Conversations == nil {
		unavailable(c, "whatsapp")
		return
	}
	conv, err := h.Conversations.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

type accountRef struct {
	AccountID string `json:"accountId"`
}

func (h Handlers) MarkConversationRead(c *gin.Context) {
	if h.Conversations == nil {
		unavailable(c, "whatsapp")
		return
	}
	var req accountRef
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	if err := h.Conversations.MarkAsRead(c.Request.Context(), c.Param("id"), req.AccountID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type archiveRequest struct {
	Archived *bool `json:"archived"`
}

// ArchiveConversation archives by default; {"archived":false} restores.
func (h Handlers) ArchiveConversation(c *gin.Context) {
	if h.Conversations == nil {
		unavailable(c, "whatsapp")
		return
	}
	var req archiveRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	archived := req.Archived == nil || *req.Archived
	if err := h.Conversations.Archive(c.Request.Context(), c.Param("id"), archived); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": archived})
}

type textRequest struct {
	Content   string `json:"content" binding:"required,max=4096"`
	AccountID string `json:"accountId"`
}

func (h Handlers) SendText(c *gin.Context) {
	if h.Conversations == nil {
		unavailable(c, "whatsapp")
		return
	}
	var req textRequest
	if !bind(c, &req) {
		return
	}
	m, err := h.Conversations.SendText(c.Request.Context(), c.Param("id"), req.Content, req.AccountID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

type mediaRequest struct {
	whatsapp.MediaMessage
	AccountID string `json:"accountId"`
}

func (h Handlers) SendMedia(c *gin.Context) {
	if h.Conversations == nil {
		unavailable(c, "whatsapp")
		return
	}
	var req mediaRequest
	if !bind(c, &req) {
		return
	}
	m, err := h.Conversations.SendMedia(c.Request.Context(), c.Param("id"), req.AccountID, req.MediaMessage)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

type templateRequest struct {
	whatsapp.TemplateMessage
	AccountID string `json:"accountId"`
}

func (h Handlers) SendTemplate(c *gin.Context) {
	if h.Conversations == nil {
		unavailable(c, "whatsapp")
		return
	}
	var req templateRequest
	if !bind(c, &req) {
		return
	}
	m, err := h.Conversations.SendTemplate(c.Request.Context(), c.Param("id"), req.AccountID, req.TemplateMessage)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// UploadAttachment stages a multipart "file" in object storage and sends it
// as a media message. Form fields: accountId, caption.
func (h Handlers) UploadAttachment(c *gin.Context) {
	if h.Conversations == nil {
		unavailable(c, "whatsapp")
		return
	}
	if h.Media == nil {
		unavailable(c, "media storage")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	convID := c.Param("id")
	obj, err := h.Media.Stage(ctx, convID, fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		writeError(c, err)
		return
	}
	m, err := h.Conversations.SendMedia(ctx, convID, c.PostForm("accountId"), whatsapp.MediaMessage{
		Type:     obj.Type,
		URL:      obj.URL,
		Caption:  c.PostForm("caption"),
		Filename: obj.Filename,
		MimeType: obj.MimeType,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if obj.ThumbnailURL != "" && len(m.Attachments) > 0 && m.Attachments[0].ThumbnailURL == "" {
		m.Attachments[0].ThumbnailURL = obj.ThumbnailURL
	}
	c.JSON(http.StatusCreated, m)
}

// --- Generic inbox ---

func (h Handlers) ListInbox(c *gin.Context) {
	if h.Inbox == nil {
		unavailable(c, "inbox")
		return
	}
	items, err := h.Inbox.List(c.Request.Context())
	resp := gin.H{"items": items, "error": nil}
	if err != nil {
		resp["error"] = errorMessage(err)
	}
	c.JSON(http.StatusOK, resp)
}

func (h Handlers) GetInboxConversation(c *gin.Context) {
	if h.Inbox == nil {
		unavailable(c, "inbox")
		return
	}
	conv, err := h.Inbox.Conversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}
