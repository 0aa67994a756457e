package notify

import (
	"context"
	"errors"
	"testing"

	"estate-inbox/internal/apiclient"
	"estate-inbox/internal/i18n"
	"estate-inbox/internal/validation"
)

func TestReporter_FailurePrefersBackendMessage(t *testing.T) {
	mem := NewMemory(0)
	r := NewReporter(mem, nil, nil)
	ctx := context.Background()

	r.Failure(ctx, i18n.AccountFailed, &apiclient.BusinessError{StatusCode: 400, Message: "token revoked"})
	r.Failure(ctx, i18n.AccountFailed, errors.New("dial tcp: refused"))

	got := mem.Drain()
	if len(got) != 2 {
		t.Fatalf("expected 2 toasts, got %d", len(got))
	}
	if got[0].Level != LevelError || got[0].Title != "Error" || got[0].Description != "token revoked" {
		t.Fatalf("unexpected toast %+v", got[0])
	}
	if got[1].Description != "The WhatsApp account operation failed." {
		t.Fatalf("expected localized fallback, got %q", got[1].Description)
	}
	if len(mem.Drain()) != 0 {
		t.Fatalf("expected drained buffer")
	}
}

func TestReporter_SkipsRedirectedUnauthorized(t *testing.T) {
	mem := NewMemory(0)
	r := NewReporter(mem, nil, nil)
	r.Failure(context.Background(), i18n.AccountFailed, &apiclient.UnauthorizedError{Message: "Token expired", Redirected: true})
	if len(mem.Snapshot()) != 0 {
		t.Fatalf("expected no toast for a 401 the logout redirect handles")
	}

	r.Failure(context.Background(), i18n.AuthLoginFailed, &apiclient.UnauthorizedError{Message: "Invalid credentials"})
	got := mem.Drain()
	if len(got) != 1 || got[0].Level != LevelError || got[0].Description != "Invalid credentials" {
		t.Fatalf("expected the backend message for an unredirected 401, got %+v", got)
	}
}

func TestReporter_ValidationAndLocale(t *testing.T) {
	mem := NewMemory(0)
	r := NewReporter(mem, i18n.Default(), func(context.Context) string { return "es" })
	ctx := context.Background()

	r.Failure(ctx, i18n.PropertyFailed, validation.Errors{{Field: "price", Rule: "gt", Message: "must be greater than 0"}})
	r.Success(ctx, i18n.PropertyCreated)
	r.Warning(ctx, i18n.LinkingCancelled)

	got := mem.Drain()
	if got[0].Description != "price must be greater than 0" {
		t.Fatalf("unexpected validation description %q", got[0].Description)
	}
	if got[1].Title != "Listo" || got[1].Description != "Propiedad creada." {
		t.Fatalf("unexpected success toast %+v", got[1])
	}
	if got[2].Level != LevelWarning || got[2].Title != "Atención" {
		t.Fatalf("unexpected warning toast %+v", got[2])
	}
}

func TestMemory_Limit(t *testing.T) {
	mem := NewMemory(2)
	for i := 0; i < 5; i++ {
		mem.Notify(context.Background(), Toast{Description: string(rune('a' + i))})
	}
	got := mem.Snapshot()
	if len(got) != 2 || got[0].Description != "d" || got[1].Description != "e" {
		t.Fatalf("expected newest two toasts, got %+v", got)
	}
}
