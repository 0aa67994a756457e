// Package session holds the signed-in user's bearer token and decoded
// identity, backed by a durable key/value store so a restart keeps the user
// signed in.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Durable keys.
const (
	KeyToken   = "auth_token"
	KeyRefresh = "refresh_token"
	KeyLocale  = "locale"
)

var (
	ErrNoSession = errors.New("session: not signed in")
	ErrExpired   = errors.New("session: token expired")
)

// Claims is the identity decoded from the bearer token.
type Claims struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Parser decodes a bearer token into claims.
type Parser func(token string) (Claims, error)

// State is the session context passed to every service. It is safe for
// concurrent use.
type State struct {
	store Store
	parse Parser
	now   func() time.Time

	mu     sync.RWMutex
	token  string
	claims Claims
	gen    uint64
}

func New(store Store, parse Parser) *State {
	if store == nil {
		store = NewMemoryStore()
	}
	if parse == nil {
		parse = func(string) (Claims, error) { return Claims{}, nil }
	}
	return &State{store: store, parse: parse, now: time.Now}
}

// Token returns the in-memory token and the generation it belongs to.
func (s *State) Token() (string, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.gen
}

func (s *State) Claims() (Claims, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims, s.token != ""
}

// Set installs a freshly issued token and persists it. refresh may be empty.
func (s *State) Set(ctx context.Context, token, refresh string) (Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return Claims{}, fmt.Errorf("session: parse token: %w", err)
	}
	if claims.Expired(s.now()) {
		return Claims{}, ErrExpired
	}
	if err := s.store.Set(ctx, KeyToken, token); err != nil {
		return Claims{}, fmt.Errorf("session: persist token: %w", err)
	}
	if refresh != "" {
		if err := s.store.Set(ctx, KeyRefresh, refresh); err != nil {
			return Claims{}, fmt.Errorf("session: persist refresh token: %w", err)
		}
	}
	s.install(token, claims)
	return claims, nil
}

func (s *State) install(token string, claims Claims) {
	s.mu.Lock()
	s.token = token
	s.claims = claims
	s.gen++
	s.mu.Unlock()
}

// Restore loads the token from the durable store when memory holds none.
func (s *State) Restore(ctx context.Context) error {
	if tok, _ := s.Token(); tok != "" {
		return nil
	}
	token, err := s.store.Get(ctx, KeyToken)
	if errors.Is(err, ErrNotFound) || (err == nil && token == "") {
		return ErrNoSession
	}
	if err != nil {
		return fmt.Errorf("session: load token: %w", err)
	}
	claims, err := s.parse(token)
	if err != nil {
		_ = s.store.Delete(ctx, KeyToken)
		return fmt.Errorf("session: parse stored token: %w", err)
	}
	if claims.Expired(s.now()) {
		_ = s.Clear(ctx)
		return ErrExpired
	}
	s.install(token, claims)
	return nil
}

// IsAuthenticated is the route-guard predicate. A token missing from memory
// and the durable store, or an expired one, means unauthenticated.
func (s *State) IsAuthenticated(ctx context.Context) bool {
	s.mu.RLock()
	token, claims := s.token, s.claims
	s.mu.RUnlock()

	if token != "" {
		if claims.Expired(s.now()) {
			_ = s.Clear(ctx)
			return false
		}
		return true
	}
	return s.Restore(ctx) == nil
}

// Clear destroys the session in memory and in the durable store. The
// generation is left unchanged; it only advances when a new token is set.
func (s *State) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.claims = Claims{}
	s.mu.Unlock()

	var errs []error
	for _, k := range []string{KeyToken, KeyRefresh} {
		if err := s.store.Delete(ctx, k); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RefreshToken returns the persisted refresh token, if any.
func (s *State) RefreshToken(ctx context.Context) string {
	v, err := s.store.Get(ctx, KeyRefresh)
	if err != nil {
		return ""
	}
	return v
}

// Locale returns the stored locale preference, or "" when unset.
func (s *State) Locale(ctx context.Context) string {
	v, err := s.store.Get(ctx, KeyLocale)
	if err != nil {
		return ""
	}
	return v
}

func (s *State) SetLocale(ctx context.Context, locale string) error {
	return s.store.Set(ctx, KeyLocale, locale)
}
