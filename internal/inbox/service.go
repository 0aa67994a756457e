package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"estate-inbox/internal/apiclient"
	"estate-inbox/internal/casing"
	"estate-inbox/internal/endpoints"
	"estate-inbox/pkg/logger"
)

// Service is the channel-agnostic inbox. It reads and writes the same table
// as the WhatsApp conversation service.
type Service struct {
	api   apiclient.API
	ep    endpoints.Registry
	store *Store

	mu      sync.Mutex
	lastErr error
}

func NewService(api apiclient.API, ep endpoints.Registry, store *Store) *Service {
	return &Service{api: api, ep: ep, store: store}
}

func (s *Service) Store() *Store { return s.store }

// List fetches every conversation across channels and replaces the inbox
// view. On failure the cached view is returned and the error recorded.
func (s *Service) List(ctx context.Context) ([]Conversation, error) {
	env, err := s.api.Get(ctx, s.ep.Conversations())
	if err != nil {
		s.setErr(ctx, err)
		return s.store.List(ViewInbox), err
	}
	var list []Conversation
	if err := DecodeList(env.Data, &list); err != nil {
		s.setErr(ctx, err)
		return s.store.List(ViewInbox), err
	}
	s.store.Upsert(list...)
	s.store.SetView(ViewInbox, ids(list))
	s.setErr(ctx, nil)
	return s.store.List(ViewInbox), nil
}

// Conversation reads a record from the shared table, fetching it when it is
// not cached yet.
func (s *Service) Conversation(ctx context.Context, id string) (Conversation, error) {
	if c, ok := s.store.Get(id); ok {
		return c, nil
	}
	env, err := s.api.Get(ctx, s.ep.Conversation(id))
	if err != nil {
		s.setErr(ctx, err)
		return Conversation{}, err
	}
	var c Conversation
	if err := casing.Default.Decode(env.Data, &c); err != nil {
		s.setErr(ctx, err)
		return Conversation{}, err
	}
	s.store.Upsert(c)
	s.store.MergeView(ViewInbox, []string{c.ID})
	c, _ = s.store.Get(c.ID)
	return c, nil
}

// LastError is the most recent read failure, nil after a successful read.
func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Service) setErr(ctx context.Context, err error) {
	if err != nil {
		logger.From(ctx).Warn("inbox read failed", "err", err)
	}
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// DecodeList transcodes a backend list payload. Both a bare array and an
// object carrying the array under "items" or "conversations" are accepted.
func DecodeList(raw json.RawMessage, out *[]Conversation) error {
	return casing.Default.Decode(UnwrapList(raw, "items", "conversations"), out)
}

// UnwrapList extracts a list payload; see DecodeList.
func UnwrapList(raw json.RawMessage, keys ...string) json.RawMessage {
	if t := bytes.TrimSpace(raw); len(t) == 0 || string(t) == "null" {
		return json.RawMessage("[]")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v
		}
	}
	return json.RawMessage("[]")
}

func ids(cs []Conversation) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}
