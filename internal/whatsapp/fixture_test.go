package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"estate-inbox/internal/apiclient"
	"estate-inbox/internal/audit"
	"estate-inbox/internal/config"
	"estate-inbox/internal/endpoints"
	"estate-inbox/internal/events"
	"estate-inbox/internal/notify"
)

type staticTokens struct{}

func (staticTokens) Token() (string, uint64) { return "session-token", 1 }

type fixture struct {
	client *apiclient.Client
	deps   Deps
	toasts *notify.Memory
	events *events.Memory
	audit  *audit.MemoryRepo
	navs   *atomic.Int32
}

func newFixture(t *testing.T, mux *http.ServeMux) *fixture {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	navs := &atomic.Int32{}
	nav := apiclient.NavigatorFunc(func(context.Context, string) { navs.Add(1) })
	client, err := apiclient.New(config.APIConfig{BaseURLs: []string{srv.URL}, LogoutRoute: "/logout"}, staticTokens{}, nav)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	toasts := notify.NewMemory(50)
	pub := &events.Memory{}
	repo := audit.NewMemoryRepo(0)
	return &fixture{
		client: client,
		deps: Deps{
			API:       client,
			Endpoints: endpoints.New("/api"),
			Reporter:  notify.NewReporter(toasts, nil, nil),
			Audit:     audit.NewService(repo),
			Events:    pub,
		},
		toasts: toasts,
		events: pub,
		audit:  repo,
		navs:   navs,
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func readBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var out map[string]any
	if r.Body == nil {
		return out
	}
	b, _ := io.ReadAll(r.Body)
	if len(b) == 0 {
		return out
	}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Errorf("request body is not JSON: %s", b)
	}
	return out
}

func lastToast(t *testing.T, m *notify.Memory) notify.Toast {
	t.Helper()
	all := m.Snapshot()
	if len(all) == 0 {
		t.Fatalf("expected a toast")
	}
	return all[len(all)-1]
}
