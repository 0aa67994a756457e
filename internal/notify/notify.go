package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"estate-inbox/internal/apiclient"
	"estate-inbox/internal/i18n"
	"estate-inbox/internal/validation"
	"estate-inbox/pkg/logger"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Toast is a user-facing notification with a title and description.
type Toast struct {
	Level       Level     `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, t Toast)
}

// Memory buffers toasts until the UI drains them.
type Memory struct {
	mu     sync.Mutex
	toasts []Toast
	limit  int
}

func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = 100
	}
	return &Memory{limit: limit}
}

func (m *Memory) Notify(_ context.Context, t Toast) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toasts = append(m.toasts, t)
	if over := len(m.toasts) - m.limit; over > 0 {
		m.toasts = append([]Toast(nil), m.toasts[over:]...)
	}
}

// Drain returns and forgets every buffered toast.
func (m *Memory) Drain() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.toasts
	m.toasts = nil
	return out
}

// Snapshot returns buffered toasts without removing them.
func (m *Memory) Snapshot() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Toast, len(m.toasts))
	copy(out, m.toasts)
	return out
}

// Log writes toasts to the request-scoped logger.
type Log struct{}

func (Log) Notify(ctx context.Context, t Toast) {
	level := slog.LevelInfo
	switch t.Level {
	case LevelError:
		level = slog.LevelError
	case LevelWarning:
		level = slog.LevelWarn
	}
	logger.From(ctx).Log(ctx, level, "notification", "title", t.Title, "description", t.Description)
}

// Multi fans a toast out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, t Toast) {
	for _, n := range m {
		n.Notify(ctx, t)
	}
}

// Reporter turns operation outcomes into localized toasts.
type Reporter struct {
	n      Notifier
	cat    *i18n.Catalog
	locale func(ctx context.Context) string
	now    func() time.Time
}

func NewReporter(n Notifier, cat *i18n.Catalog, locale func(ctx context.Context) string) *Reporter {
	if cat == nil {
		cat = i18n.Default()
	}
	if locale == nil {
		locale = func(context.Context) string { return "" }
	}
	return &Reporter{n: n, cat: cat, locale: locale, now: time.Now}
}

func (r *Reporter) Success(ctx context.Context, key i18n.Key) {
	r.emit(ctx, LevelSuccess, i18n.TitleSuccess, r.text(ctx, key))
}

func (r *Reporter) Warning(ctx context.Context, key i18n.Key) {
	r.emit(ctx, LevelWarning, i18n.TitleWarning, r.text(ctx, key))
}

// Failure reports err with the backend's message when it has one, otherwise
// the localized fallback for key. 401s the logout redirect handles are
// skipped; other 401s (a wrong password) are reported like any rejection.
func (r *Reporter) Failure(ctx context.Context, key i18n.Key, err error) {
	if apiclient.Redirected(err) {
		return
	}
	desc := apiclient.Message(err)
	var ve validation.Errors
	if desc == "" && errors.As(err, &ve) && len(ve) > 0 {
		desc = ve[0].Field + " " + ve[0].Message
	}
	if desc == "" {
		desc = r.text(ctx, key)
	}
	r.emit(ctx, LevelError, i18n.TitleError, desc)
}

func (r *Reporter) text(ctx context.Context, key i18n.Key) string {
	return r.cat.T(r.locale(ctx), key)
}

func (r *Reporter) emit(ctx context.Context, level Level, title i18n.Key, desc string) {
	if r.n == nil {
		return
	}
	r.n.Notify(ctx, Toast{
		Level:       level,
		Title:       r.text(ctx, title),
		Description: desc,
		At:          r.now().UTC(),
	})
}
