package audit

import (
	"context"
	"testing"

	"estate-inbox/internal/auth"
)

func TestService_AppendRequiresType(t *testing.T) {
	svc := NewService(NewMemoryRepo(0))
	if err := svc.Append(context.Background(), Event{AccountID: "a1"}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestService_RecordFillsActorAndID(t *testing.T) {
	repo := NewMemoryRepo(0)
	svc := NewService(repo)
	ctx := auth.WithIdentity(context.Background(), "u-1", "a@estate.test", "admin")

	svc.Record(ctx, AccountVerified, "acct-1", "verified")

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].ActorUserID != "u-1" || evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("unexpected event %+v", evs[0])
	}
}

func TestService_NilIsNoop(t *testing.T) {
	var svc *Service
	svc.Record(context.Background(), AccountDeleted, "a", "")
}

func TestMemoryRepo_RecentNewestFirstAndBounded(t *testing.T) {
	repo := NewMemoryRepo(3)
	svc := NewService(repo)
	for _, id := range []string{"a", "b", "c", "d"} {
		svc.Record(context.Background(), AccountCreated, id, "")
	}
	got, err := svc.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].AccountID != "d" || got[1].AccountID != "c" {
		t.Fatalf("unexpected order %+v", got)
	}
	all, _ := svc.Recent(context.Background(), 0)
	if len(all) != 3 {
		t.Fatalf("expected bounded to 3, got %d", len(all))
	}
}
