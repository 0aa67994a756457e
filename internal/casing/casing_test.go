package casing

import (
	"reflect"
	"strings"
	"testing"
)

func backendAccount() map[string]any {
	return map[string]any{
		"id":                  "acct-1",
		"phone_number_id":     "123",
		"business_account_id": "456",
		"connection_status":   "CONNECTED",
		"is_active":           true,
		"meta": map[string]any{
			"last_verified_at": "2026-01-01T00:00:00Z",
			"webhook_events":   []any{map[string]any{"event_type": "messages"}, "raw", 3.0},
		},
	}
}

func assertCamelKeys(t *testing.T, v any) {
	t.Helper()
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			if strings.Contains(k, "_") {
				t.Fatalf("expected camelCase key, got %q", k)
			}
			assertCamelKeys(t, val)
		}
	case []any:
		for _, val := range x {
			assertCamelKeys(t, val)
		}
	}
}

func TestToClientCase_OnlyCamelKeys(t *testing.T) {
	out := WhatsAppAccount.ToClientCase(backendAccount())
	assertCamelKeys(t, out)

	m := out.(map[string]any)
	if m["phoneNumberId"] != "123" || m["businessAccountId"] != "456" {
		t.Fatalf("unexpected fields: %+v", m)
	}
	if m["isActive"] != true {
		t.Fatalf("expected isActive true")
	}
	events := m["meta"].(map[string]any)["webhookEvents"].([]any)
	if events[1] != "raw" || events[2] != 3.0 {
		t.Fatalf("scalars in sequences must be untouched: %+v", events)
	}
}

func TestToClientCase_AppliesRenames(t *testing.T) {
	out := WhatsAppAccount.ToClientCase(map[string]any{"connection_status": "CONNECTED"}).(map[string]any)
	if out["status"] != "CONNECTED" {
		t.Fatalf("expected status CONNECTED, got %+v", out)
	}
	if _, ok := out["connectionStatus"]; ok {
		t.Fatalf("rename must replace the default mapping")
	}
}

func TestToClientCase_RenameWinsCollision(t *testing.T) {
	for i := 0; i < 20; i++ {
		out := WhatsAppAccount.ToClientCase(map[string]any{
			"status":            "active",
			"connection_status": "ERROR",
		}).(map[string]any)
		if out["status"] != "ERROR" {
			t.Fatalf("expected renamed field to win, got %v", out["status"])
		}
	}
}

func TestToClientCase_NilYieldsEmptyObject(t *testing.T) {
	out, ok := Default.ToClientCase(nil).(map[string]any)
	if !ok || len(out) != 0 {
		t.Fatalf("expected empty object, got %#v", out)
	}
	if out, ok := Default.ToBackendCase(nil).(map[string]any); !ok || len(out) != 0 {
		t.Fatalf("expected empty object, got %#v", out)
	}
}

func TestToClientCase_ScalarUntouched(t *testing.T) {
	if got := Default.ToClientCase("phone_number"); got != "phone_number" {
		t.Fatalf("scalar changed: %v", got)
	}
}

func TestToClientCase_IdempotentOnClientInput(t *testing.T) {
	once := WhatsAppAccount.ToClientCase(backendAccount())
	twice := WhatsAppAccount.ToClientCase(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("not idempotent:\n%#v\n%#v", once, twice)
	}

	prop := Property.ToClientCase(map[string]any{"is_cover_image": true, "unit_number": "4B", "area_m2": 80.0})
	if !reflect.DeepEqual(prop, Property.ToClientCase(prop)) {
		t.Fatalf("property transcoding not idempotent: %#v", prop)
	}
}

func TestRoundTrip_RegularFields(t *testing.T) {
	in := map[string]any{
		"phone_number_id":     "123",
		"business_account_id": "456",
		"access_token":        "tok",
		"items": []any{
			map[string]any{"created_at": "x", "is_unread": false},
		},
	}
	got := Default.ToBackendCase(Default.ToClientCase(in))
	if !reflect.DeepEqual(in, got) {
		t.Fatalf("round trip mismatch:\n%#v\n%#v", in, got)
	}
}

func TestRoundTrip_RenameTables(t *testing.T) {
	in := map[string]any{"connection_status": "PENDING", "phone_number": "+1"}
	if got := WhatsAppAccount.ToBackendCase(WhatsAppAccount.ToClientCase(in)); !reflect.DeepEqual(in, got) {
		t.Fatalf("account round trip mismatch: %#v", got)
	}
	p := map[string]any{"is_cover_image": true, "unit_number": "4B", "area_m2": 80.0}
	if got := Property.ToBackendCase(Property.ToClientCase(p)); !reflect.DeepEqual(p, got) {
		t.Fatalf("property round trip mismatch: %#v", got)
	}
}

func TestNew_RejectsNonBijectiveTable(t *testing.T) {
	if _, err := New(Rename{Backend: "a_b", Client: "x"}, Rename{Backend: "c_d", Client: "x"}); err == nil {
		t.Fatalf("expected duplicate client name error")
	}
	if _, err := New(Rename{Backend: "a_b", Client: "x"}, Rename{Backend: "a_b", Client: "y"}); err == nil {
		t.Fatalf("expected duplicate backend name error")
	}
}

func TestCamelToSnake(t *testing.T) {
	cases := map[string]string{
		"isCoverImage":  "is_cover_image",
		"avatarURL":     "avatar_url",
		"HTTPStatus":    "http_status",
		"already_snake": "already_snake",
		"id":            "id",
	}
	for in, want := range cases {
		if got := CamelToSnake(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
}

type decodedAccount struct {
	ID            string `json:"id"`
	PhoneNumberID string `json:"phoneNumberId"`
	Status        string `json:"status"`
}

func TestDecodeAndEncode(t *testing.T) {
	var a decodedAccount
	if err := WhatsAppAccount.Decode([]byte(`{"id":"1","phone_number_id":"123","connection_status":"PENDING"}`), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.PhoneNumberID != "123" || a.Status != "PENDING" {
		t.Fatalf("unexpected decode: %+v", a)
	}

	out, err := WhatsAppAccount.Encode(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m := out.(map[string]any)
	if m["phone_number_id"] != "123" || m["connection_status"] != "PENDING" {
		t.Fatalf("unexpected encode: %+v", m)
	}

	var empty decodedAccount
	if err := WhatsAppAccount.Decode(nil, &empty); err != nil {
		t.Fatalf("decode nil: %v", err)
	}
}
