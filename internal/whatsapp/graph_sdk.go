package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"estate-inbox/internal/config"
	"estate-inbox/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CallbackPath is where the local listener receives the OAuth redirect.
const CallbackPath = "/oauth/callback"

// Opener shows the login dialog to the user.
type Opener interface {
	Open(ctx context.Context, dialogURL string) error
}

// BrowserOpener launches the system browser.
type BrowserOpener struct{}

func (BrowserOpener) Open(ctx context.Context, dialogURL string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", dialogURL)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", dialogURL)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", dialogURL)
	}
	return cmd.Start()
}

// GraphLoginSDK drives the Facebook OAuth dialog from a desktop process: it
// opens the dialog in a browser and waits for the redirect on a local gin
// listener, matching callbacks to logins by state.
type GraphLoginSDK struct {
	meta    config.MetaConfig
	opener  Opener
	timeout time.Duration
	engine  *gin.Engine

	mu      sync.Mutex
	pending map[string]chan LoginResponse
	srv     *http.Server
	addr    string
}

func NewGraphLoginSDK(meta config.MetaConfig, opener Opener) *GraphLoginSDK {
	if opener == nil {
		opener = BrowserOpener{}
	}
	g := &GraphLoginSDK{
		meta:    meta,
		opener:  opener,
		timeout: 5 * time.Minute,
		pending: map[string]chan LoginResponse{},
	}
	g.engine = gin.New()
	g.engine.Use(gin.Recovery())
	g.engine.GET(CallbackPath, g.handleCallback)
	return g
}

// Handler exposes the callback routes, e.g. to mount them on another server.
func (g *GraphLoginSDK) Handler() http.Handler { return g.engine }

// Init starts the callback listener. Calling it again is a no-op.
func (g *GraphLoginSDK) Init(ctx context.Context) error {
	if g.meta.AppID == "" {
		return errors.New("whatsapp: META_APP_ID is not configured")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.srv != nil {
		return nil
	}
	ln, err := net.Listen("tcp", g.meta.CallbackAddr)
	if err != nil {
		return fmt.Errorf("whatsapp: callback listener: %w", err)
	}
	g.srv = &http.Server{Handler: g.engine, ReadHeaderTimeout: 10 * time.Second}
	g.addr = ln.Addr().String()
	go func() {
		if err := g.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.From(ctx).Error("oauth callback listener stopped", "err", err)
		}
	}()
	logger.From(ctx).Info("oauth callback listener started", "addr", g.addr)
	return nil
}

// Addr is the bound listener address, "" before Init.
func (g *GraphLoginSDK) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addr
}

// Login opens the dialog and blocks until the redirect for opts.State
// arrives, ctx ends or the login times out.
func (g *GraphLoginSDK) Login(ctx context.Context, opts LoginOptions) (LoginResponse, error) {
	if opts.State == "" {
		return LoginResponse{}, &SDKError{Op: "login", Err: errors.New("state is required")}
	}
	ch := make(chan LoginResponse, 1)
	g.mu.Lock()
	if _, dup := g.pending[opts.State]; dup {
		g.mu.Unlock()
		return LoginResponse{}, &SDKError{Op: "login", Err: errors.New("state already in use")}
	}
	g.pending[opts.State] = ch
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.pending, opts.State)
		g.mu.Unlock()
	}()

	if err := g.opener.Open(ctx, g.DialogURL(opts)); err != nil {
		return LoginResponse{}, &SDKError{Op: "open dialog", Err: err}
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		return LoginResponse{Status: "unknown"}, nil
	case <-ctx.Done():
		return LoginResponse{}, ctx.Err()
	}
}

// DialogURL builds the Facebook OAuth dialog URL for opts.
func (g *GraphLoginSDK) DialogURL(opts LoginOptions) string {
	q := url.Values{}
	q.Set("client_id", g.meta.AppID)
	q.Set("redirect_uri", g.meta.RedirectURL)
	q.Set("state", opts.State)
	q.Set("response_type", opts.ResponseType)
	q.Set("scope", opts.Scope)
	if opts.ConfigID != "" {
		q.Set("config_id", opts.ConfigID)
	}
	if opts.OverrideDefaultResponseType {
		q.Set("override_default_response_type", "true")
	}
	version := g.meta.GraphVersion
	if version == "" {
		version = "v21.0"
	}
	return "https://www.facebook.com/" + version + "/dialog/oauth?" + q.Encode()
}

func (g *GraphLoginSDK) handleCallback(c *gin.Context) {
	state := c.Query("state")
	g.mu.Lock()
	ch, ok := g.pending[state]
	g.mu.Unlock()
	if state == "" || !ok {
		c.String(http.StatusBadRequest, "Unknown or expired login request.")
		return
	}

	resp := LoginResponse{Status: "not_authorized"}
	if code := c.Query("code"); code != "" && c.Query("error") == "" {
		resp = LoginResponse{Status: "connected", AuthResponse: &AuthResponse{Code: code}}
	}
	select {
	case ch <- resp:
	default:
	}
	c.String(http.StatusOK, "You can close this window and return to the CRM.")
}

// Close stops the callback listener.
func (g *GraphLoginSDK) Close(ctx context.Context) error {
	g.mu.Lock()
	srv := g.srv
	g.srv = nil
	g.addr = ""
	g.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
