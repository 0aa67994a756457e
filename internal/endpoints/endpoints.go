package endpoints

import (
	"net/url"
	"strings"
)

// Registry builds every backend path the client calls.
// Paths are relative to the API base URL(s) configured on the HTTP client; the
// registry only owns the optional path prefix (e.g. "/api").
type Registry struct {
	prefix string
}

// New returns a registry rooted at prefix. An empty prefix is valid.
func New(prefix string) Registry {
	p := strings.TrimSpace(prefix)
	p = strings.TrimRight(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return Registry{prefix: p}
}

func (r Registry) path(parts ...string) string {
	var b strings.Builder
	b.WriteString(r.prefix)
	for _, p := range parts {
		b.WriteString("/")
		b.WriteString(p)
	}
	return b.String()
}

func id(v string) string { return url.PathEscape(strings.TrimSpace(v)) }

// --- auth ---

func (r Registry) Login() string { return r.path("auth", "login") }
func (r Registry) Register() string { return r.path("auth", "register") }
func (r Registry) Logout() string { return r.path("auth", "logout") }
func (r Registry) Refresh() string { return r.path("auth", "refresh") }
func (r Registry) Me() string { return r.path("auth", "me") }
func (r Registry) ForgotPassword() string { return r.path("auth", "forgot-password") }
func (r Registry) ResetPassword() string { return r.path("auth", "reset-password") }

// --- properties ---

func (r Registry) Properties() string { return r.path("properties") }
func (r Registry) Property(propertyID string) string { return r.path("properties", id(propertyID)) }

// PublicProperties is the anonymous listing shown on the landing page.
func (r Registry) PublicProperties() string { return r.path("properties") + "?visibility=public" }

// --- whatsapp accounts ---

func (r Registry) WhatsAppAccounts() string { return r.path("whatsapp", "accounts") }

func (r Registry) WhatsAppAccount(accountID string) string {
	return r.path("whatsapp", "accounts", id(accountID))
}

func (r Registry) WhatsAppAccountVerify(accountID string) string {
	return r.path("whatsapp", "accounts", id(accountID), "verify")
}

func (r Registry) WhatsAppAccountDeactivate(accountID string) string {
	return r.path("whatsapp", "accounts", id(accountID), "deactivate")
}

func (r Registry) WhatsAppAccountReactivate(accountID string) string {
	return r.path("whatsapp", "accounts", id(accountID), "reactivate")
}

func (r Registry) WhatsAppTemplates(accountID string) string {
	return r.path("whatsapp", "accounts", id(accountID), "templates")
}

// --- whatsapp conversations / messages ---

// WhatsAppConversations lists conversations, optionally filtered by account.
func (r Registry) WhatsAppConversations(accountID string) string {
	p := r.path("whatsapp", "conversations")
	if strings.TrimSpace(accountID) == "" {
		return p
	}
	return p + "?" + url.Values{"account_id": {strings.TrimSpace(accountID)}}.Encode()
}

func (r Registry) WhatsAppConversation(conversationID string) string {
	return r.path("whatsapp", "conversations", id(conversationID))
}

func (r Registry) WhatsAppConversationRead(conversationID string) string {
	return r.path("whatsapp", "conversations", id(conversationID), "read")
}

func (r Registry) WhatsAppConversationArchive(conversationID string) string {
	return r.path("whatsapp", "conversations", id(conversationID), "archive")
}

func (r Registry) WhatsAppSendText(conversationID string) string {
	return r.path("whatsapp", "conversations", id(conversationID), "messages", "text")
}

func (r Registry) WhatsAppSendMedia(conversationID string) string {
	return r.path("whatsapp", "conversations", id(conversationID), "messages", "media")
}

func (r Registry) WhatsAppSendTemplate(conversationID string) string {
	return r.path("whatsapp", "conversations", id(conversationID), "messages", "template")
}

// --- whatsapp oauth ---

func (r Registry) WhatsAppOAuthPrepare() string { return r.path("whatsapp", "oauth", "prepare") }
func (r Registry) WhatsAppOAuthCallback() string { return r.path("whatsapp", "oauth", "callback") }

// --- generic inbox ---

func (r Registry) Conversations() string { return r.path("conversations") }

func (r Registry) Conversation(conversationID string) string {
	return r.path("conversations", id(conversationID))
}

// InboxSocket is the realtime feed path; the caller swaps the scheme to ws/wss.
func (r Registry) InboxSocket() string { return r.path("ws", "inbox") }
