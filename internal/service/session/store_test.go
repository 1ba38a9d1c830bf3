package session_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/model/chat"
	"github.com/zhouzirui/cantonese-tutor/backend/internal/service/session"
)

func TestStoreCreateReturnsUniqueEmptySessions(t *testing.T) {
	store := session.NewStore()
	ctx := context.Background()

	a := store.Create(ctx)
	b := store.Create(ctx)

	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID, b.ID)
	}
	if got := store.History(ctx, a.ID); len(got) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(got))
	}
}

func TestStoreAppendUnknownSessionAutoCreates(t *testing.T) {
	store := session.NewStore()
	ctx := context.Background()

	history := store.Append(ctx, "never-created", chat.UserTurn("你好", "", time.Now()))

	if len(history) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(history))
	}
	if !store.Exists(ctx, "never-created") {
		t.Fatal("expected session to be auto-created")
	}
}

func TestStoreHistoryUnknownSessionIsEmpty(t *testing.T) {
	store := session.NewStore()

	got := store.History(context.Background(), "missing")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil history, got %#v", got)
	}
}

func TestStoreAppendKeepsMostRecentTurnsInOrder(t *testing.T) {
	store := session.NewStore(session.WithHistoryLimit(20))
	ctx := context.Background()
	sess := store.Create(ctx)

	for i := 0; i < 25; i++ {
		history := store.Append(ctx, sess.ID,
			chat.UserTurn(fmt.Sprintf("u%d", i), "", time.Now()),
			chat.AssistantTurn(fmt.Sprintf("a%d", i), time.Now()),
		)
		if len(history) > 20 {
			t.Fatalf("history exceeded limit after %d exchanges: %d", i+1, len(history))
		}
	}

	history := store.History(ctx, sess.ID)
	if len(history) != 20 {
		t.Fatalf("expected 20 turns, got %d", len(history))
	}
	if history[0].Text != "u15" || history[19].Text != "a24" {
		t.Fatalf("unexpected window: first=%s last=%s", history[0].Text, history[19].Text)
	}
	for i := 0; i < len(history); i += 2 {
		if history[i].Role != chat.RoleUser || history[i+1].Role != chat.RoleAssistant {
			t.Fatalf("order broken at %d: %s/%s", i, history[i].Role, history[i+1].Role)
		}
	}
}

func TestStoreHistoryReturnsCopy(t *testing.T) {
	store := session.NewStore()
	ctx := context.Background()
	sess := store.Create(ctx)
	store.Append(ctx, sess.ID, chat.UserTurn("hello", "", time.Now()))

	got := store.History(ctx, sess.ID)
	got[0].Text = "mutated"

	if store.History(ctx, sess.ID)[0].Text != "hello" {
		t.Fatal("internal state mutated via returned slice")
	}
}

func TestStoreCloseAndSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := session.NewStore(session.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	stale := store.Create(ctx)
	closed := store.Create(ctx)

	if !store.Close(ctx, closed.ID) {
		t.Fatal("expected close to report existing session")
	}
	if store.Close(ctx, closed.ID) {
		t.Fatal("second close should report missing session")
	}

	now = now.Add(3 * time.Hour)
	fresh := store.Create(ctx)

	if removed := store.Sweep(2 * time.Hour); removed != 1 {
		t.Fatalf("expected 1 swept session, got %d", removed)
	}
	if store.Exists(ctx, stale.ID) {
		t.Fatal("stale session should be swept")
	}
	if !store.Exists(ctx, fresh.ID) {
		t.Fatal("fresh session should survive sweep")
	}
}
