package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"estate-inbox/internal/config"
	"estate-inbox/pkg/logger"

	"golang.org/x/net/publicsuffix"
)

// RefreshCookie is the cookie the backend uses for the refresh token.
const RefreshCookie = "refresh_token"

// TokenSource supplies the bearer token and the session generation it belongs
// to. The generation changes every time a new token is set.
type TokenSource interface {
	Token() (token string, generation uint64)
}

// Navigator performs the client-side redirect after a 401.
type Navigator interface {
	Navigate(ctx context.Context, route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, route string)

func (f NavigatorFunc) Navigate(ctx context.Context, route string) { f(ctx, route) }

// Envelope is the backend response wrapper. Both {success:true} and
// {status:"success"} mark success.
type Envelope struct {
	Success *bool           `json:"success,omitempty"`
	Status  string          `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e Envelope) OK() bool {
	if e.Success != nil {
		return *e.Success
	}
	return strings.EqualFold(e.Status, "success")
}

// Client is the single configured HTTP client for the backend.
// It is safe for concurrent use.
type Client struct {
	http   *http.Client
	pool   *pool
	tokens TokenSource
	nav    Navigator
	logout string
	guard  *redirectGuard
	now    func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its Jar is kept if set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		if hc.Jar == nil {
			hc.Jar = c.http.Jar
		}
		c.http = hc
	}
}

func New(cfg config.APIConfig, tokens TokenSource, nav Navigator, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("apiclient: cookie jar: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		http:   &http.Client{Timeout: timeout, Jar: jar},
		pool:   newPool(cfg.BaseURLs, cfg.FailThreshold, cfg.Cooldown),
		tokens: tokens,
		nav:    nav,
		logout: cfg.LogoutRoute,
		guard:  &redirectGuard{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.pool.endpoints) == 0 {
		return nil, ErrNoEndpoint
	}
	return c, nil
}

// WithoutLogoutRedirect returns a client sharing transport, cookies and
// failover state, whose 401 responses never trigger the logout redirect.
func (c *Client) WithoutLogoutRedirect() *Client {
	cp := *c
	cp.nav = nil
	return &cp
}

func (c *Client) Get(ctx context.Context, path string) (Envelope, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (Envelope, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) (Envelope, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) (Envelope, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// Do issues one request and decodes the response envelope.
//
// Idempotent methods fall through to the next base URL on connection
// failures and 5xx responses. A POST moves on only when the dial itself
// failed; once it may have reached a server it is never re-issued.
func (c *Client) Do(ctx context.Context, method, path string, body any) (Envelope, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Envelope{}, &TransportError{Method: method, Path: path, Err: err}
		}
		payload = b
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	token, gen := "", uint64(0)
	if c.tokens != nil {
		token, gen = c.tokens.Token()
	}

	endpoints := c.pool.order(c.now())
	if len(endpoints) == 0 {
		return Envelope{}, &TransportError{Method: method, Path: path, Err: ErrNoEndpoint}
	}

	log := logger.From(ctx)
	var lastErr error
	for _, endpoint := range endpoints {
		start := c.now()
		resp, err := c.send(ctx, method, endpoint+path, payload, token)
		if err != nil {
			log.Warn("api request failed", "method", method, "path", path, "endpoint", endpoint, "err", err)
			lastErr = &TransportError{Method: method, Path: path, Err: err}
			c.pool.onFailure(endpoint, c.now())
			if ctx.Err() != nil {
				return Envelope{}, lastErr
			}
			// Past the dial the backend may already have acted on a POST.
			if !idempotent(method) && !dialFailure(err) {
				return Envelope{}, lastErr
			}
			continue
		}
		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		log.Info("api request",
			"method", method,
			"path", path,
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"duration_ms", float64(c.now().Sub(start).Milliseconds()),
		)

		if readErr != nil {
			lastErr = &TransportError{Method: method, Path: path, Err: readErr}
			c.pool.onFailure(endpoint, c.now())
			if !idempotent(method) {
				return Envelope{}, lastErr
			}
			continue
		}

		if resp.StatusCode >= 500 {
			c.pool.onFailure(endpoint, c.now())
			lastErr = statusFailure(method, path, resp.StatusCode, raw)
			if idempotent(method) {
				continue
			}
			return Envelope{}, lastErr
		}

		c.pool.onSuccess(endpoint)

		if resp.StatusCode == http.StatusUnauthorized {
			c.unauthorized(ctx, gen)
			return Envelope{}, &UnauthorizedError{Message: failureMessage(raw), Redirected: c.nav != nil}
		}
		if resp.StatusCode >= 300 {
			return Envelope{}, statusFailure(method, path, resp.StatusCode, raw)
		}
		return decodeEnvelope(method, path, resp.StatusCode, raw)
	}

	if lastErr == nil {
		lastErr = &TransportError{Method: method, Path: path, Err: ErrNoEndpoint}
	}
	return Envelope{}, lastErr
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte, token string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.http.Do(req)
}

// RefreshToken returns the refresh cookie the backend set, if any.
func (c *Client) RefreshToken() string {
	u, err := url.Parse(c.pool.primary())
	if err != nil || c.http.Jar == nil {
		return ""
	}
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == RefreshCookie {
			return ck.Value
		}
	}
	return ""
}

// SetRefreshToken seeds the refresh cookie for every base URL, e.g. after
// restoring a session from durable storage. An empty value expires it.
func (c *Client) SetRefreshToken(value string) {
	if c.http.Jar == nil {
		return
	}
	for _, endpoint := range c.pool.endpoints {
		u, err := url.Parse(endpoint)
		if err != nil {
			continue
		}
		ck := &http.Cookie{Name: RefreshCookie, Value: value, Path: "/", HttpOnly: true}
		if value == "" {
			ck.MaxAge = -1
		}
		c.http.Jar.SetCookies(u, []*http.Cookie{ck})
	}
}

// BaseURL is the first configured backend base URL.
func (c *Client) BaseURL() string { return c.pool.primary() }

type redirectGuard struct {
	mu    sync.Mutex
	fired bool
	gen   uint64
}

// unauthorized navigates to the logout route at most once per session
// generation, however many concurrent requests observe the 401.
func (c *Client) unauthorized(ctx context.Context, gen uint64) {
	if c.nav == nil {
		return
	}
	// A request from an older session must not end the current one.
	if c.tokens != nil {
		if _, current := c.tokens.Token(); gen < current {
			return
		}
	}
	c.guard.mu.Lock()
	if c.guard.fired && gen <= c.guard.gen {
		c.guard.mu.Unlock()
		return
	}
	c.guard.fired = true
	c.guard.gen = gen
	c.guard.mu.Unlock()

	logger.From(ctx).Warn("session rejected by backend, redirecting", "route", c.logout)
	c.nav.Navigate(ctx, c.logout)
}

func decodeEnvelope(method, path string, status int, raw []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		if status == http.StatusNoContent {
			ok := true
			return Envelope{Success: &ok}, nil
		}
		return Envelope{}, &BusinessError{StatusCode: status}
	}
	// Bare arrays are list payloads without a wrapper.
	if trimmed[0] == '[' {
		ok := true
		return Envelope{Success: &ok, Data: json.RawMessage(trimmed)}, nil
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Envelope{}, &TransportError{Method: method, Path: path, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if !env.OK() {
		return Envelope{}, &BusinessError{StatusCode: status, Message: env.Message}
	}
	return env, nil
}

func statusFailure(method, path string, status int, raw []byte) error {
	if msg := failureMessage(raw); msg != "" {
		return &BusinessError{StatusCode: status, Message: msg}
	}
	return &StatusError{StatusCode: status, Method: method, Path: path}
}

// failureMessage extracts message or error from a failure body.
func failureMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// dialFailure reports whether err happened while connecting, before any
// byte of the request was written.
func dialFailure(err error) bool {
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

// IsUnauthorized reports whether err came from a 401.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// API is the subset of Client the domain services depend on.
type API interface {
	Get(ctx context.Context, path string) (Envelope, error)
	Post(ctx context.Context, path string, body any) (Envelope, error)
	Put(ctx context.Context, path string, body any) (Envelope, error)
	Delete(ctx context.Context, path string) (Envelope, error)
}

var _ API = (*Client)(nil)
