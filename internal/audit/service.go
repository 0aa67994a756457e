package audit

import (
	"context"
	"errors"
	"time"

	"estate-inbox/internal/auth"
	"estate-inbox/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. It is append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Service records the activity log shown on the settings page.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if e.ActorUserID == "" {
		e.ActorUserID = auth.Actor(ctx)
	}
	return s.repo.Append(ctx, e)
}

// Record appends an event and logs instead of failing. A nil Service is a
// no-op.
func (s *Service) Record(ctx context.Context, typ EventType, accountID, message string) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, Event{Type: typ, AccountID: accountID, Message: message}); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", string(typ), "err", err)
	}
}

// RecordConversation is Record for conversation-scoped events.
func (s *Service) RecordConversation(ctx context.Context, typ EventType, accountID, conversationID, message string) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, Event{Type: typ, AccountID: accountID, ConversationID: conversationID, Message: message}); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", string(typ), "err", err)
	}
}

func (s *Service) Recent(ctx context.Context, limit int) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	return s.repo.Recent(ctx, limit)
}
