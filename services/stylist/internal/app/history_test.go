package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gauge/pkg/domain"
)

func TestAppendHistoryEvictsOldest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < DefaultHistoryLimit+15; i++ {
		entry := domain.HistoryEntry{
			ID:        fmt.Sprintf("e%03d", i),
			Kind:      domain.KindStyleCheck,
			CreatedAt: env.clock.Now().Add(time.Duration(i) * time.Minute),
		}
		if err := env.app.appendHistory(ctx, testInstallation, entry); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		entries, err := env.app.ListHistory(ctx, testInstallation)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(entries) > DefaultHistoryLimit {
			t.Fatalf("history grew to %d", len(entries))
		}
	}
	entries, _ := env.app.ListHistory(ctx, testInstallation)
	if len(entries) != DefaultHistoryLimit {
		t.Fatalf("expected %d entries, got %d", DefaultHistoryLimit, len(entries))
	}
	if entries[0].ID != "e114" {
		t.Fatalf("newest entry should come first, got %s", entries[0].ID)
	}
	if last := entries[len(entries)-1].ID; last != "e015" {
		t.Fatalf("oldest surviving entry = %s, want e015", last)
	}
}

func TestSaveSessionToHistoryUpserts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := domain.ChatSession{ID: "s1", CreatedAt: env.clock.Now(), Messages: []domain.ChatMessage{{ID: "m1", Role: domain.RoleUser}}}
	first, err := env.app.saveSessionToHistory(ctx, testInstallation, session)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := env.app.appendHistory(ctx, testInstallation, domain.HistoryEntry{ID: "other", Kind: domain.KindOutfit}); err != nil {
		t.Fatalf("append: %v", err)
	}
	session.Messages = append(session.Messages, domain.ChatMessage{ID: "m2", Role: domain.RoleAssistant})
	second, err := env.app.saveSessionToHistory(ctx, testInstallation, session)
	if err != nil {
		t.Fatalf("resave: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same history entry to be updated")
	}
	entries, _ := env.app.ListHistory(ctx, testInstallation)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	got, err := env.app.GetHistory(ctx, testInstallation, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Chat.Messages) != 2 || !got.Chat.Active {
		t.Fatalf("unexpected stored chat %+v", got.Chat)
	}
}

func TestDeleteAndClearHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_ = env.app.appendHistory(ctx, testInstallation, domain.HistoryEntry{ID: "a", Kind: domain.KindOutfit})
	_ = env.app.appendHistory(ctx, testInstallation, domain.HistoryEntry{ID: "b", Kind: domain.KindOutfit})

	if err := env.app.DeleteHistory(ctx, testInstallation, "missing"); !errors.Is(err, ErrHistoryNotFound) {
		t.Fatalf("expected ErrHistoryNotFound, got %v", err)
	}
	if err := env.app.DeleteHistory(ctx, testInstallation, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.app.GetHistory(ctx, testInstallation, "a"); !errors.Is(err, ErrHistoryNotFound) {
		t.Fatalf("deleted entry still present: %v", err)
	}
	if err := env.app.ClearHistory(ctx, testInstallation); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ := env.app.ListHistory(ctx, testInstallation)
	if len(entries) != 0 {
		t.Fatalf("expected empty history, got %d", len(entries))
	}
}

func TestHistoryChatActiveFollowsLastMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.gen.replies = []string{"Try the grey suit."}
	if _, err := env.app.SendMessage(ctx, testInstallation, "hi", nil); err != nil {
		t.Fatalf("send: %v", err)
	}

	check := func(want bool) {
		t.Helper()
		entries, err := env.app.ListHistory(ctx, testInstallation)
		if err != nil || len(entries) != 1 || entries[0].Chat == nil {
			t.Fatalf("list: %v %+v", err, entries)
		}
		if entries[0].Chat.Active != want {
			t.Fatalf("ListHistory active = %v, want %v", entries[0].Chat.Active, want)
		}
		got, err := env.app.GetHistory(ctx, testInstallation, entries[0].ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Chat.Active != want {
			t.Fatalf("GetHistory active = %v, want %v", got.Chat.Active, want)
		}
	}

	env.clock.Advance(time.Minute)
	check(true)
	env.clock.Advance(DefaultSessionActiveWindow - 2*time.Minute)
	check(true)
	env.clock.Advance(2 * time.Minute)
	check(false)
}

func TestHistoryIgnoresStoredActiveFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stale := env.clock.Now().Add(-48 * time.Hour)
	entry := domain.HistoryEntry{
		ID:        "old-chat",
		Kind:      domain.KindChat,
		CreatedAt: stale,
		Chat:      &domain.ChatSession{ID: "s-old", CreatedAt: stale, LastMessageAt: stale, Active: true},
	}
	if err := env.app.appendHistory(ctx, testInstallation, entry); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := env.app.GetHistory(ctx, testInstallation, "old-chat")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Chat.Active {
		t.Fatalf("stale chat reported active")
	}
}
