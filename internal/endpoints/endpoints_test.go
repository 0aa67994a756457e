package endpoints

import "testing"

func TestNew_NormalizesPrefix(t *testing.T) {
	cases := map[string]string{
		"":      "/auth/login",
		"api":   "/api/auth/login",
		"/api/": "/api/auth/login",
		" /v1 ": "/v1/auth/login",
	}
	for prefix, want := range cases {
		if got := New(prefix).Login(); got != want {
			t.Fatalf("prefix %q: expected %q, got %q", prefix, want, got)
		}
	}
}

func TestRegistry_EscapesIDs(t *testing.T) {
	r := New("/api")
	if got := r.WhatsAppAccountVerify("a/b"); got != "/api/whatsapp/accounts/a%2Fb/verify" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestRegistry_ConversationFilter(t *testing.T) {
	r := New("/api")
	if got := r.WhatsAppConversations(""); got != "/api/whatsapp/conversations" {
		t.Fatalf("unexpected path %q", got)
	}
	if got := r.WhatsAppConversations("acct-1"); got != "/api/whatsapp/conversations?account_id=acct-1" {
		t.Fatalf("unexpected path %q", got)
	}
}
