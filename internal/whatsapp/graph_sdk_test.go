package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"estate-inbox/internal/config"

	"github.com/gin-gonic/gin"
)

// callbackOpener simulates the browser: it follows the dialog and lands on
// the local callback with the given query.
type callbackOpener struct {
	sdk   *GraphLoginSDK
	query func(state string) url.Values
	seen  string
}

func (o *callbackOpener) Open(_ context.Context, dialogURL string) error {
	o.seen = dialogURL
	u, err := url.Parse(dialogURL)
	if err != nil {
		return err
	}
	q := o.query(u.Query().Get("state"))
	rec := httptest.NewRecorder()
	o.sdk.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?"+q.Encode(), nil))
	if rec.Code != http.StatusOK {
		return errors.New("callback rejected")
	}
	return nil
}

func testMeta() config.MetaConfig {
	return config.MetaConfig{
		AppID:        "app-1",
		ConfigID:     "cfg-1",
		GraphVersion: "v21.0",
		CallbackAddr: "127.0.0.1:0",
		RedirectURL:  "http://127.0.0.1:8765/oauth/callback",
	}
}

func TestGraphLoginSDK_DialogURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := NewGraphLoginSDK(testMeta(), nil)
	raw := g.DialogURL(LoginOptions{ResponseType: "code", Scope: DefaultScope, State: "s-1", ConfigID: "cfg-1", OverrideDefaultResponseType: true})

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Host != "www.facebook.com" || u.Path != "/v21.0/dialog/oauth" {
		t.Fatalf("unexpected dialog url %s", raw)
	}
	q := u.Query()
	want := map[string]string{
		"client_id":                      "app-1",
		"redirect_uri":                   "http://127.0.0.1:8765/oauth/callback",
		"state":                          "s-1",
		"response_type":                  "code",
		"scope":                          DefaultScope,
		"config_id":                      "cfg-1",
		"override_default_response_type": "true",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Fatalf("%s: expected %q, got %q", k, v, q.Get(k))
		}
	}
}

func TestGraphLoginSDK_LoginReceivesCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	opener := &callbackOpener{query: func(state string) url.Values {
		return url.Values{"state": {state}, "code": {"the-code"}}
	}}
	g := NewGraphLoginSDK(testMeta(), opener)
	opener.sdk = g

	resp, err := g.Login(context.Background(), LoginOptions{ResponseType: "code", State: "s-1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Code() != "the-code" || resp.Status != "connected" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGraphLoginSDK_DeniedIsNotAuthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	opener := &callbackOpener{query: func(state string) url.Values {
		return url.Values{"state": {state}, "error": {"access_denied"}}
	}}
	g := NewGraphLoginSDK(testMeta(), opener)
	opener.sdk = g

	resp, err := g.Login(context.Background(), LoginOptions{State: "s-2"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Status != "not_authorized" || resp.Code() != "" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGraphLoginSDK_UnknownStateRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := NewGraphLoginSDK(testMeta(), nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?state=forged&code=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGraphLoginSDK_LoginHonoursContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := NewGraphLoginSDK(testMeta(), openerFunc(func(context.Context, string) error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := g.Login(ctx, LoginOptions{State: "s-3"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

type openerFunc func(ctx context.Context, u string) error

func (f openerFunc) Open(ctx context.Context, u string) error { return f(ctx, u) }

func TestGraphLoginSDK_InitStartsListener(t *testing.T) {
	gin.SetMode(gin.TestMode)
	meta := testMeta()
	meta.AppID = ""
	if err := NewGraphLoginSDK(meta, nil).Init(context.Background()); err == nil {
		t.Fatalf("expected error without app id")
	}

	g := NewGraphLoginSDK(testMeta(), nil)
	if err := g.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = g.Close(context.Background()) })
	if err := g.Init(context.Background()); err != nil {
		t.Fatalf("second init must be a no-op: %v", err)
	}

	resp, err := http.Get("http://" + g.Addr() + CallbackPath + "?state=unknown")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 from live listener, got %d", resp.StatusCode)
	}
}
