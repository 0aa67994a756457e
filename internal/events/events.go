// Package events publishes domain events (account lifecycle, messages sent,
// session changes) for other systems on the CRM's message bus.
package events

import (
	"context"
	"sync"
	"time"
)

// Routing keys.
const (
	AccountCreated      = "whatsapp.account.created"
	AccountUpdated      = "whatsapp.account.updated"
	AccountVerified     = "whatsapp.account.verified"
	AccountActivated    = "whatsapp.account.activated"
	AccountDeactivated  = "whatsapp.account.deactivated"
	AccountDeleted      = "whatsapp.account.deleted"
	AccountDisconnected = "whatsapp.account.disconnected"
	AccountLinked       = "whatsapp.account.linked"
	MessageSent         = "whatsapp.message.sent"
	MessageReceived     = "whatsapp.message.received"
	ConversationRead    = "whatsapp.conversation.read"
	SessionLogin        = "session.login"
	SessionLogout       = "session.logout"
)

// Envelope is the body of every published event.
type Envelope struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	ActorID    string    `json:"actor_id,omitempty"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, key string, payload any) error
	Close() error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }

// Memory records events in order; useful for tests.
type Memory struct {
	Actor ActorFunc

	mu     sync.Mutex
	events []Envelope
}

func (m *Memory) Publish(ctx context.Context, key string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, NewEnvelope(ctx, key, payload, m.Actor))
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Events() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Envelope, len(m.events))
	copy(out, m.events)
	return out
}

// Keys lists the routing keys published so far.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Key)
	}
	return out
}
