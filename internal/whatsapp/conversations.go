package whatsapp

import (
	"context"
	"encoding/json"
	"sync"

	"estate-inbox/internal/audit"
	"estate-inbox/internal/casing"
	"estate-inbox/internal/events"
	"estate-inbox/internal/i18n"
	"estate-inbox/internal/inbox"
	"estate-inbox/internal/validation"
	"estate-inbox/pkg/logger"

	"github.com/google/uuid"
)

// ConversationService syncs WhatsApp conversations into the shared inbox
// table. The WhatsApp view and the generic inbox view list the same records.
type ConversationService struct {
	deps  Deps
	store *inbox.Store
	newID func() string

	mu      sync.Mutex
	lastErr error
}

func NewConversationService(deps Deps, store *inbox.Store) *ConversationService {
	return &ConversationService{deps: deps.withDefaults(), store: store, newID: uuid.NewString}
}

func (s *ConversationService) Store() *inbox.Store { return s.store }

// ListConversations fetches the conversations of accountID ("" for all
// accounts) and makes them the WhatsApp view. Ids the generic inbox does not
// list yet are appended to it. On failure the cached view is returned with
// the error.
func (s *ConversationService) ListConversations(ctx context.Context, accountID string) ([]Conversation, error) {
	env, err := s.deps.API.Get(ctx, s.deps.Endpoints.WhatsAppConversations(accountID))
	if err != nil {
		s.setErr(ctx, err)
		return s.store.List(inbox.ViewWhatsApp), err
	}
	var list []Conversation
	if err := inbox.DecodeList(env.Data, &list); err != nil {
		s.setErr(ctx, err)
		return s.store.List(inbox.ViewWhatsApp), err
	}
	ids := make([]string, 0, len(list))
	for i := range list {
		if list[i].Channel == "" {
			list[i].Channel = inbox.ChannelWhatsApp
		}
		if list[i].AccountID == "" {
			list[i].AccountID = accountID
		}
		ids = append(ids, list[i].ID)
	}
	s.store.Upsert(list...)
	s.store.SetView(inbox.ViewWhatsApp, ids)
	s.store.MergeView(inbox.ViewInbox, ids)
	s.setErr(ctx, nil)
	return s.store.List(inbox.ViewWhatsApp), nil
}

// GetConversation fetches one conversation with its full history. An unread
// conversation is marked as read right away.
func (s *ConversationService) GetConversation(ctx context.Context, id string) (Conversation, error) {
	env, err := s.deps.API.Get(ctx, s.deps.Endpoints.WhatsAppConversation(id))
	if err != nil {
		s.setErr(ctx, err)
		return Conversation{}, err
	}
	var c Conversation
	if err := casing.Default.Decode(unwrap(env.Data, "conversation"), &c); err != nil {
		s.setErr(ctx, err)
		return Conversation{}, err
	}
	if c.ID == "" {
		c.ID = id
	}
	if c.Channel == "" {
		c.Channel = inbox.ChannelWhatsApp
	}
	if c.Messages == nil {
		c.Messages = []Message{}
	}
	s.store.Upsert(c)
	s.store.MergeView(inbox.ViewWhatsApp, []string{c.ID})
	s.store.MergeView(inbox.ViewInbox, []string{c.ID})
	s.setErr(ctx, nil)

	if c.UnreadCount > 0 || c.LastMessage.IsUnread {
		_ = s.MarkAsRead(ctx, c.ID, c.AccountID)
	}
	out, _ := s.store.Get(c.ID)
	return out, nil
}

type textRequest struct {
	Content         string `json:"content" binding:"required,max=4096"`
	AccountID       string `json:"accountId,omitempty"`
	ClientMessageID string `json:"clientMessageId"`
}

type mediaRequest struct {
	MediaMessage
	AccountID       string `json:"accountId,omitempty"`
	ClientMessageID string `json:"clientMessageId"`
}

type templateRequest struct {
	Template        TemplateMessage `json:"template"`
	AccountID       string          `json:"accountId,omitempty"`
	ClientMessageID string          `json:"clientMessageId"`
}

// SendText posts a text reply and appends the server's message record.
func (s *ConversationService) SendText(ctx context.Context, conversationID, content, accountID string) (Message, error) {
	req := textRequest{Content: content, AccountID: accountID, ClientMessageID: s.newID()}
	return s.send(ctx, conversationID, accountID, s.deps.Endpoints.WhatsAppSendText(conversationID), req, content)
}

func (s *ConversationService) SendMedia(ctx context.Context, conversationID, accountID string, media MediaMessage) (Message, error) {
	if err := validation.Struct(media); err != nil {
		s.deps.Reporter.Failure(ctx, i18n.MessageSendFailed, err)
		return Message{}, err
	}
	req := mediaRequest{MediaMessage: media, AccountID: accountID, ClientMessageID: s.newID()}
	return s.send(ctx, conversationID, accountID, s.deps.Endpoints.WhatsAppSendMedia(conversationID), req, media.Caption)
}

func (s *ConversationService) SendTemplate(ctx context.Context, conversationID, accountID string, tmpl TemplateMessage) (Message, error) {
	if err := validation.Struct(tmpl); err != nil {
		s.deps.Reporter.Failure(ctx, i18n.MessageSendFailed, err)
		return Message{}, err
	}
	req := templateRequest{Template: tmpl, AccountID: accountID, ClientMessageID: s.newID()}
	return s.send(ctx, conversationID, accountID, s.deps.Endpoints.WhatsAppSendTemplate(conversationID), req, tmpl.Name)
}

func (s *ConversationService) send(ctx context.Context, conversationID, accountID, path string, req any, fallbackContent string) (Message, error) {
	if err := validation.Struct(req); err != nil {
		s.deps.Reporter.Failure(ctx, i18n.MessageSendFailed, err)
		return Message{}, err
	}
	body, err := casing.Default.Encode(req)
	if err != nil {
		return Message{}, err
	}
	env, err := s.deps.API.Post(ctx, path, body)
	if err != nil {
		s.deps.Reporter.Failure(ctx, i18n.MessageSendFailed, err)
		return Message{}, err
	}
	var m Message
	if err := casing.Default.Decode(unwrap(env.Data, "message"), &m); err != nil {
		s.deps.Reporter.Failure(ctx, i18n.MessageSendFailed, err)
		return Message{}, err
	}
	if m.ConversationID == "" {
		m.ConversationID = conversationID
	}
	if m.Channel == "" {
		m.Channel = inbox.ChannelWhatsApp
	}
	if m.Status == "" {
		m.Status = inbox.StatusSent
	}
	if m.Content == "" {
		m.Content = fallbackContent
	}

	s.ensure(conversationID, accountID)
	s.store.Update(conversationID, func(c *Conversation) { c.Append(m, false) })

	s.publish(ctx, events.MessageSent, map[string]any{
		"conversation_id": conversationID,
		"account_id":      accountID,
		"message_id":      m.ID,
	})
	return m, nil
}

type readRequest struct {
	AccountID string `json:"accountId,omitempty"`
}

// MarkAsRead posts the read receipt, then zeroes the unread counter and flag
// of the shared record.
func (s *ConversationService) MarkAsRead(ctx context.Context, conversationID, accountID string) error {
	body, err := casing.Default.Encode(readRequest{AccountID: accountID})
	if err != nil {
		return err
	}
	if _, err := s.deps.API.Post(ctx, s.deps.Endpoints.WhatsAppConversationRead(conversationID), body); err != nil {
		s.deps.Reporter.Failure(ctx, i18n.ConversationFailed, err)
		return err
	}
	s.store.Update(conversationID, func(c *Conversation) { c.MarkRead() })
	s.publish(ctx, events.ConversationRead, map[string]any{"conversation_id": conversationID})
	return nil
}

type archiveRequest struct {
	Archived bool `json:"archived"`
}

// Archive sets or clears the archived flag.
func (s *ConversationService) Archive(ctx context.Context, conversationID string, archived bool) error {
	if _, err := s.deps.API.Post(ctx, s.deps.Endpoints.WhatsAppConversationArchive(conversationID), archiveRequest{Archived: archived}); err != nil {
		s.deps.Reporter.Failure(ctx, i18n.ConversationFailed, err)
		return err
	}
	var accountID string
	s.store.Update(conversationID, func(c *Conversation) {
		c.IsArchived = archived
		accountID = c.AccountID
	})
	if archived {
		s.deps.Reporter.Success(ctx, i18n.ConversationArchive)
	}
	s.deps.Audit.RecordConversation(ctx, audit.ConversationArchived, accountID, conversationID, "")
	return nil
}

// ListTemplates reads the approved templates of an account.
func (s *ConversationService) ListTemplates(ctx context.Context, accountID string) ([]Template, error) {
	env, err := s.deps.API.Get(ctx, s.deps.Endpoints.WhatsAppTemplates(accountID))
	if err != nil {
		s.setErr(ctx, err)
		return nil, err
	}
	var out []Template
	if err := casing.Default.Decode(inbox.UnwrapList(env.Data, "items", "templates"), &out); err != nil {
		s.setErr(ctx, err)
		return nil, err
	}
	return out, nil
}

// ApplyIncoming records an inbound message pushed by the realtime feed.
func (s *ConversationService) ApplyIncoming(ctx context.Context, m Message) bool {
	if m.ConversationID == "" {
		return false
	}
	if m.Channel == "" {
		m.Channel = inbox.ChannelWhatsApp
	}
	s.ensure(m.ConversationID, "")
	appended := false
	s.store.Update(m.ConversationID, func(c *Conversation) { appended = c.Append(m, true) })
	if appended {
		s.publish(ctx, events.MessageReceived, map[string]any{
			"conversation_id": m.ConversationID,
			"message_id":      m.ID,
		})
	}
	return appended
}

// ApplyStatus advances a message's delivery status. Backward moves are
// ignored.
func (s *ConversationService) ApplyStatus(messageID string, status inbox.MessageStatus) bool {
	convID, ok := s.store.FindMessage(messageID)
	if !ok {
		return false
	}
	changed := false
	s.store.Update(convID, func(c *Conversation) { changed = c.SetStatus(messageID, status) })
	return changed
}

// LastError is the most recent read failure, nil after a successful read.
func (s *ConversationService) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *ConversationService) setErr(ctx context.Context, err error) {
	if err != nil {
		logger.From(ctx).Warn("whatsapp conversation read failed", "err", err)
	}
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// ensure creates an empty record for a conversation the client has not
// loaded yet, listed in both views.
func (s *ConversationService) publish(ctx context.Context, key string, payload any) {
	if err := s.deps.Events.Publish(ctx, key, payload); err != nil {
		logger.From(ctx).Warn("event publish failed", "key", key, "err", err)
	}
}

func (s *ConversationService) ensure(id, accountID string) {
	if _, ok := s.store.Get(id); !ok {
		s.store.Upsert(Conversation{ID: id, AccountID: accountID, Channel: inbox.ChannelWhatsApp, Messages: []Message{}})
	}
	s.store.MergeView(inbox.ViewWhatsApp, []string{id})
	s.store.MergeView(inbox.ViewInbox, []string{id})
}

func unwrap(raw json.RawMessage, key string) json.RawMessage {
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil {
		return raw
	}
	if v, ok := obj[key]; ok && len(v) > 0 && v[0] == '{' {
		return v
	}
	return raw
}
