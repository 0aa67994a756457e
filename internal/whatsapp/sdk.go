package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrLinkCancelled means the user closed or denied the Facebook login.
var ErrLinkCancelled = errors.New("whatsapp: authorization cancelled")

// LoginOptions are passed to the Facebook login dialog.
type LoginOptions struct {
	ResponseType                string
	Scope                       string
	State                       string
	ConfigID                    string
	OverrideDefaultResponseType bool
}

type AuthResponse struct {
	Code string `json:"code"`
}

// LoginResponse mirrors the login SDK's callback payload. Status is
// "connected", "not_authorized" or "unknown".
type LoginResponse struct {
	Status       string        `json:"status"`
	AuthResponse *AuthResponse `json:"authResponse,omitempty"`
}

// Code returns the authorization code, "" when the login did not grant one.
func (r LoginResponse) Code() string {
	if r.Status == "not_authorized" || r.AuthResponse == nil {
		return ""
	}
	return r.AuthResponse.Code
}

// SDK is the third-party login SDK.
type SDK interface {
	Init(ctx context.Context) error
	Login(ctx context.Context, opts LoginOptions) (LoginResponse, error)
}

// SDKError wraps failures raised by the login SDK itself.
type SDKError struct {
	Op  string
	Err error
}

func (e *SDKError) Error() string { return fmt.Sprintf("whatsapp: sdk %s: %v", e.Op, e.Err) }
func (e *SDKError) Unwrap() error { return e.Err }

// Loader initializes an SDK at most once. Concurrent callers share one
// in-flight Init; a failed Init is forgotten so the next call tries again.
type Loader struct {
	sdk   SDK
	group singleflight.Group

	mu    sync.Mutex
	ready bool
}

func NewLoader(sdk SDK) *Loader { return &Loader{sdk: sdk} }

func (l *Loader) SDK() SDK { return l.sdk }

func (l *Loader) EnsureInit(ctx context.Context) error {
	l.mu.Lock()
	ready := l.ready
	l.mu.Unlock()
	if ready {
		return nil
	}

	ch := l.group.DoChan("init", func() (any, error) {
		l.mu.Lock()
		done := l.ready
		l.mu.Unlock()
		if done {
			return nil, nil
		}
		if err := l.sdk.Init(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.ready = true
		l.mu.Unlock()
		return nil, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return &SDKError{Op: "init", Err: res.Err}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
