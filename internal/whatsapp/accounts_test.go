package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"estate-inbox/internal/apiclient"
	"estate-inbox/internal/audit"
	"estate-inbox/internal/events"
	"estate-inbox/internal/notify"
)

func TestCreate_ReturnsCamelCaseAccountAndToasts(t *testing.T) {
	mux := http.NewServeMux()
	bodies := make(chan map[string]any, 1)
	mux.HandleFunc("POST /api/whatsapp/accounts", func(w http.ResponseWriter, r *http.Request) {
		bodies <- readBody(t, r)
		writeJSON(w, http.StatusCreated, `{"success":true,"data":{
			"id":"acct-1","phone_number_id":"123","business_account_id":"456",
			"connection_status":"PENDING","is_active":true}}`)
	})
	f := newFixture(t, mux)
	m := NewAccountManager(f.deps)

	a, err := m.Create(context.Background(), AccountForm{PhoneNumberID: "123", BusinessAccountID: "456", AccessToken: "tok"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got := <-bodies
	if got["phone_number_id"] != "123" || got["business_account_id"] != "456" || got["access_token"] != "tok" {
		t.Fatalf("expected snake_case request body, got %v", got)
	}
	if a.ID != "acct-1" || a.PhoneNumberID != "123" || a.BusinessAccountID != "456" || !a.IsActive {
		t.Fatalf("unexpected account %+v", a)
	}
	if a.Status != StatusPending && a.Status != StatusConnected {
		t.Fatalf("expected PENDING or CONNECTED, got %s", a.Status)
	}
	if toast := lastToast(t, f.toasts); toast.Level != notify.LevelSuccess {
		t.Fatalf("expected success toast, got %+v", toast)
	}
	if _, ok := m.Get("acct-1"); !ok {
		t.Fatalf("expected account cached")
	}
	if evs := f.audit.Events(); len(evs) != 1 || evs[0].Type != audit.AccountCreated {
		t.Fatalf("expected audit entry, got %+v", evs)
	}
	if keys := f.events.Keys(); len(keys) != 1 || keys[0] != events.AccountCreated {
		t.Fatalf("expected created event, got %v", keys)
	}
}

func TestCreate_BackendFailureToastsMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/whatsapp/accounts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":false,"message":"Phone number already registered"}`)
	})
	f := newFixture(t, mux)
	m := NewAccountManager(f.deps)

	_, err := m.Create(context.Background(), AccountForm{PhoneNumberID: "1"})
	var be *apiclient.BusinessError
	if !errors.As(err, &be) {
		t.Fatalf("expected business error, got %v", err)
	}
	toast := lastToast(t, f.toasts)
	if toast.Level != notify.LevelError || toast.Description != "Phone number already registered" {
		t.Fatalf("unexpected toast %+v", toast)
	}
	if len(m.Accounts()) != 0 {
		t.Fatalf("nothing should be cached")
	}
}

func TestFetchAll_UnauthorizedRedirectsAndReturnsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/whatsapp/accounts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"message":"token expired"}`)
	})
	f := newFixture(t, mux)
	m := NewAccountManager(f.deps)

	list := m.FetchAll(context.Background())
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}
	if f.navs.Load() != 1 {
		t.Fatalf("expected one logout navigation, got %d", f.navs.Load())
	}
	if !apiclient.IsUnauthorized(m.LastError()) {
		t.Fatalf("expected unauthorized recorded, got %v", m.LastError())
	}
	if n := len(f.toasts.Snapshot()); n != 0 {
		t.Fatalf("reads must not toast, got %d", n)
	}
}

func TestFetchAll_TranscodesAndOrders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/whatsapp/accounts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"success","data":[
			{"id":"b","name":"Sales","connection_status":"connected","is_active":true},
			{"id":"a","name":"Rentals","connection_status":"ERROR","is_active":false,"error_message":"token revoked"}
		]}`)
	})
	f := newFixture(t, mux)
	m := NewAccountManager(f.deps)

	list := m.FetchAll(context.Background())
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[0].Status != StatusConnected || list[1].ErrorMessage != "token revoked" {
		t.Fatalf("unexpected transcoding %+v", list)
	}
	if active := m.Active(); len(active) != 1 || active[0].ID != "b" {
		t.Fatalf("unexpected active view %+v", active)
	}
	if m.LastError() != nil {
		t.Fatalf("unexpected error %v", m.LastError())
	}
}

func TestFetchAll_FailureKeepsCache(t *testing.T) {
	var fail atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/whatsapp/accounts", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			writeJSON(w, http.StatusOK, `{"success":false,"message":"down"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"success":true,"data":[{"id":"a"}]}`)
	})
	f := newFixture(t, mux)
	m := NewAccountManager(f.deps)

	m.FetchAll(context.Background())
	fail.Store(true)
	if list := m.FetchAll(context.Background()); len(list) != 0 {
		t.Fatalf("expected empty result on failure, got %+v", list)
	}
	if len(m.Accounts()) != 1 {
		t.Fatalf("expected cache untouched")
	}
	if m.LastError() == nil {
		t.Fatalf("expected error recorded")
	}
}

func TestFetchOne_NotFoundIsNil(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/whatsapp/accounts/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "missing" {
			writeJSON(w, http.StatusNotFound, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"success":true,"data":{"account":{"id":"a","connection_status":"CONNECTED"}}}`)
	})
	f := newFixture(t, mux)
	m := NewAccountManager(f.deps)

	a, err := m.FetchOne(context.Background(), "missing")
	if err != nil || a != nil {
		t.Fatalf("expected nil, nil; got %+v %v", a, err)
	}
	a, err = m.FetchOne(context.Background(), "a")
	if err != nil || a == nil || a.Status != StatusConnected {
		t.Fatalf("unexpected %+v %v", a, err)
	}
}

func TestVerify_NeverPendingAfter200(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Status
	}{
		{"connected", `{"success":true,"data":{"id":"a","connection_status":"CONNECTED"}}`, StatusConnected},
		{"lowercase", `{"success":true,"data":{"id":"a","connection_status":"connected"}}`, StatusConnected},
		{"still pending", `{"success":true,"message":"Meta has not confirmed the number","data":{"id":"a","connection_status":"PENDING"}}`, StatusError},
		{"error", `{"success":true,"data":{"id":"a","connection_status":"ERROR","error_message":"bad token"}}`, StatusError},
		{"no data", `{"success":true}`, StatusConnected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /api/whatsapp/accounts", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, `{"success":true,"data":[{"id":"a","connection_status":"PENDING","is_active":true}]}`)
			})
			mux.HandleFunc("POST /api/whatsapp/accounts/a/verify", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tc.body)
			})
			f := newFixture(t, mux)
			m := NewAccountManager(f.deps)
			m.FetchAll(context.Background())

			a, err := m.Verify(context.Background(), "a")
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if a.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, a.Status)
			}
			if a.Status == StatusError && a.ErrorMessage == "" {
				t.Fatalf("ERROR must carry a message")
			}
			if a.LastVerifiedAt == nil {
				t.Fatalf("expected lastVerifiedAt set")
			}
			cached, _ := m.Get("a")
			if cached.Status != tc.want || !cached.IsActive {
				t.Fatalf("unexpected cached account %+v", cached)
			}
		})
	}
}

func TestVerify_RejectionMarksError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/whatsapp/accounts/a/verify", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{"message":"Invalid access token"}`)
	})
	f := newFixture(t, mux)
	m := NewAccountManager(f.deps)

	a, err := m.Verify(context.Background(), "a")
	if err == nil {
		t.Fatalf("expected error")
	}
	if a.Status != StatusError || a.ErrorMessage != "Invalid access token" {
		t.Fatalf("unexpected account %+v", a)
	}
	if toast := lastToast(t, f.toasts); toast.Description != "Invalid access token" {
		t.Fatalf("unexpected toast %+v", toast)
	}
}

func TestDeactivateThenActivate_RestoresIsActiveOnly(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/whatsapp/accounts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"data":[{"id":"a","connection_status":"CONNECTED","is_active":true}]}`)
	})
	mux.HandleFunc("POST /api/whatsapp/accounts/a/deactivate", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"data":{"id":"a","connection_status":"DISCONNECTED","is_active":false}}`)
	})
	mux.HandleFunc("POST /api/whatsapp/accounts/a/reactivate", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true}`)
	})
	f := newFixture(t, mux)
	m := NewAccountManager(f.deps)
	ctx := context.Background()
	m.FetchAll(ctx)

	a, err := m.Deactivate(ctx, "a")
	if err != nil || a.IsActive || a.Status != StatusConnected {
		t.Fatalf("unexpected after deactivate %+v %v", a, err)
	}
	if len(m.Active()) != 0 {
		t.Fatalf("deactivated account must leave the active view")
	}
	a, err = m.Activate(ctx, "a")
	if err != nil || !a.IsActive || a.Status != StatusConnected {
		t.Fatalf("unexpected after activate %+v %v", a, err)
	}
	if cached, _ := m.Get("a"); !cached.IsActive || cached.Status != StatusConnected {
		t.Fatalf("unexpected cached %+v", cached)
	}
}

func TestDelete_RemovesFromCache(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/whatsapp/accounts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"data":[{"id":"a"},{"id":"b"}]}`)
	})
	mux.HandleFunc("DELETE /api/whatsapp/accounts/a", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	f := newFixture(t, mux)
	m := NewAccountManager(f.deps)
	ctx := context.Background()
	m.FetchAll(ctx)

	if err := m.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list := m.Accounts()
	if len(list) != 1 || list[0].ID != "b" {
		t.Fatalf("unexpected cache %+v", list)
	}
}

func TestUpdate_StaleResponseIsNotCached(t *testing.T) {
	firstArrived := make(chan struct{})
	releaseFirst := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/whatsapp/accounts/a", func(w http.ResponseWriter, r *http.Request) {
		body := readBody(t, r)
		name, _ := body["name"].(string)
		if name == "first" {
			close(firstArrived)
			<-releaseFirst
		}
		writeJSON(w, http.StatusOK, `{"success":true,"data":{"id":"a","name":"`+name+`"}}`)
	})
	f := newFixture(t, mux)
	m := NewAccountManager(f.deps)
	ctx := context.Background()

	var wg sync.WaitGroup
	var firstResult Account
	wg.Add(1)
	first := "first"
	go func() {
		defer wg.Done()
		firstResult, _ = m.Update(ctx, "a", AccountPatch{Name: &first})
	}()
	<-firstArrived

	second := "second"
	if _, err := m.Update(ctx, "a", AccountPatch{Name: &second}); err != nil {
		t.Fatalf("second update: %v", err)
	}
	close(releaseFirst)
	wg.Wait()

	if firstResult.Name != "first" {
		t.Fatalf("caller must still get its own response, got %+v", firstResult)
	}
	if cached, _ := m.Get("a"); cached.Name != "second" {
		t.Fatalf("stale response overwrote newer state: %+v", cached)
	}
}

func TestFetchAll_DoesNotResurrectDeletedAccount(t *testing.T) {
	listArrived := make(chan struct{})
	releaseList := make(chan struct{})
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/whatsapp/accounts", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			close(listArrived)
			<-releaseList
		}
		writeJSON(w, http.StatusOK, `{"success":true,"data":[{"id":"a"},{"id":"b"}]}`)
	})
	mux.HandleFunc("DELETE /api/whatsapp/accounts/a", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true}`)
	})
	f := newFixture(t, mux)
	m := NewAccountManager(f.deps)
	ctx := context.Background()
	m.FetchAll(ctx)

	done := make(chan []Account)
	go func() { done <- m.FetchAll(ctx) }()
	<-listArrived
	if err := m.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	close(releaseList)
	<-done

	if _, ok := m.Get("a"); ok {
		t.Fatalf("an older list response must not bring back a deleted account")
	}
	if _, ok := m.Get("b"); !ok {
		t.Fatalf("expected b kept")
	}
}

func TestMarkDisconnected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/whatsapp/accounts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"data":[{"id":"a","connection_status":"CONNECTED","is_active":true}]}`)
	})
	f := newFixture(t, mux)
	m := NewAccountManager(f.deps)
	ctx := context.Background()
	m.FetchAll(ctx)

	if m.MarkDisconnected(ctx, "unknown", "x") {
		t.Fatalf("unknown accounts are ignored")
	}
	if !m.MarkDisconnected(ctx, "a", "number deregistered") {
		t.Fatalf("expected change")
	}
	a, _ := m.Get("a")
	if a.Status != StatusDisconnected || !a.IsActive || a.ErrorMessage != "number deregistered" {
		t.Fatalf("unexpected account %+v", a)
	}
	if keys := f.events.Keys(); keys[len(keys)-1] != events.AccountDisconnected {
		t.Fatalf("expected disconnect event, got %v", keys)
	}
}
