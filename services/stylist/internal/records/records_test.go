package records

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"gauge/internal/util"
	"gauge/pkg/domain"
	"gauge/pkg/store"
)

func ptr(v float64) *float64 { return &v }

func TestProfileRoundTrip(t *testing.T) {
	r := New(store.NewMemoryStore())
	ctx := context.Background()

	got, err := r.LoadProfile(ctx, "inst-1")
	if err != nil || got != nil {
		t.Fatalf("expected nil profile before save, got %v err=%v", got, err)
	}
	want := domain.UserProfile{
		FirstName: "Sam",
		LastName:  "Rivera",
		Measurements: &domain.Measurements{
			Chest: ptr(40.5), Waist: ptr(32), Neck: ptr(15.5),
			Sleeve: ptr(34), Shoulder: ptr(18.25), Inseam: ptr(31),
			Unit: "in",
		},
		StylePreferences:  []string{"classic", "minimal"},
		FavoriteOccasions: []string{"work"},
		ShoeSize:          "10.5",
		UpdatedAt:         time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	}
	if err := r.SaveProfile(ctx, "inst-1", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = r.LoadProfile(ctx, "inst-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(*got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", *got, want)
	}
}

func TestClosetAndPremiumRoundTripOverRedis(t *testing.T) {
	redis := miniredis.RunT(t)
	s, err := store.NewRedisStore(redis.Addr(), "")
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	r := New(s)
	ctx := context.Background()

	items := []domain.ClosetItem{
		{ID: "a", Type: domain.GarmentJacket, Name: "Navy blazer", Colors: []string{"navy"}, Material: "wool",
			CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "b", Type: domain.GarmentShoes, Name: "Loafers", Colors: []string{"brown", "tan"},
			CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), UpdatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	if err := r.SaveCloset(ctx, "inst-1", items); err != nil {
		t.Fatalf("save closet: %v", err)
	}
	gotItems, err := r.LoadCloset(ctx, "inst-1")
	if err != nil {
		t.Fatalf("load closet: %v", err)
	}
	if !reflect.DeepEqual(gotItems, items) {
		t.Fatalf("closet mismatch: %+v", gotItems)
	}

	if _, ok, err := r.LoadPremium(ctx, "inst-1"); ok || err != nil {
		t.Fatalf("expected no premium record yet, ok=%v err=%v", ok, err)
	}
	activated := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	status := domain.PremiumStatus{IsPremium: true, FreeChecksRemaining: 2, ChatTrialRemaining: 0, ChatMessagesSent: 7, ActivatedAt: &activated}
	if err := r.SavePremium(ctx, "inst-1", status); err != nil {
		t.Fatalf("save premium: %v", err)
	}
	gotStatus, ok, err := r.LoadPremium(ctx, "inst-1")
	if err != nil || !ok {
		t.Fatalf("load premium: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(gotStatus, status) {
		t.Fatalf("premium mismatch: %+v", gotStatus)
	}
}

func TestSafeDefaults(t *testing.T) {
	r := New(store.NewMemoryStore())
	ctx := context.Background()

	closet, err := r.LoadCloset(ctx, "fresh")
	if err != nil || closet == nil || len(closet) != 0 {
		t.Fatalf("closet default = %v err=%v", closet, err)
	}
	history, err := r.LoadHistory(ctx, "fresh")
	if err != nil || history == nil || len(history) != 0 {
		t.Fatalf("history default = %v err=%v", history, err)
	}
	state, err := r.LoadOnboarding(ctx, "fresh")
	if err != nil || state.CompletedSteps == nil || state.SkippedSteps == nil {
		t.Fatalf("onboarding default = %+v err=%v", state, err)
	}
	session, err := r.LoadChatSession(ctx, "fresh")
	if err != nil || session != nil {
		t.Fatalf("chat session default = %v err=%v", session, err)
	}
}

func TestCorruptRecordDegradesToDefault(t *testing.T) {
	mem := store.NewMemoryStore()
	r := New(mem)
	ctx := context.Background()
	_ = mem.Set(ctx, Key("inst-1", Closet), []byte(`[{"id":"a","colors":"not-a-list"}]`))
	_ = mem.Set(ctx, Key("inst-1", Profile), []byte(`{not json`))

	closet, err := r.LoadCloset(ctx, "inst-1")
	if err != nil || len(closet) != 0 {
		t.Fatalf("expected empty closet for corrupt record, got %v err=%v", closet, err)
	}
	profile, err := r.LoadProfile(ctx, "inst-1")
	if err != nil || profile != nil {
		t.Fatalf("expected nil profile for corrupt record, got %v err=%v", profile, err)
	}
}

func TestBackendErrorsAreReturned(t *testing.T) {
	redis := miniredis.RunT(t)
	s, _ := store.NewRedisStore(redis.Addr(), "")
	r := New(s)
	redis.Close()
	items, err := r.LoadCloset(context.Background(), "inst-1")
	if err == nil {
		t.Fatalf("expected backend error")
	}
	if items == nil {
		t.Fatalf("expected non-nil default alongside error")
	}
}

func TestRecordsAreScopedPerInstallation(t *testing.T) {
	r := New(store.NewMemoryStore())
	ctx := context.Background()
	_ = r.SaveProfile(ctx, "inst-a", domain.UserProfile{FirstName: "A"})
	if p, _ := r.LoadProfile(ctx, "inst-b"); p != nil {
		t.Fatalf("profile leaked across installations")
	}
}

func TestClearAll(t *testing.T) {
	mem := store.NewMemoryStore()
	r := New(mem)
	ctx := context.Background()
	_ = r.SaveProfile(ctx, "inst-1", domain.UserProfile{FirstName: "A"})
	_ = r.SaveCloset(ctx, "inst-1", []domain.ClosetItem{{ID: "x"}})
	_ = r.SaveProfile(ctx, "inst-2", domain.UserProfile{FirstName: "B"})
	if err := r.ClearAll(ctx, "inst-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mem.Len() != 1 {
		t.Fatalf("expected only the other installation's record left, have %d", mem.Len())
	}
}

func TestEmptyInstallationRejected(t *testing.T) {
	r := New(store.NewMemoryStore())
	if err := r.SaveProfile(context.Background(), " ", domain.UserProfile{}); !errors.Is(err, ErrInstallationRequired) {
		t.Fatalf("expected ErrInstallationRequired, got %v", err)
	}
}

func TestCorruptRecordWarningUsesRequestLogger(t *testing.T) {
	mem := store.NewMemoryStore()
	r := New(mem)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil)).With("request_id", "req-42")
	ctx := util.ContextWithLogger(context.Background(), logger)
	_ = mem.Set(ctx, Key("inst-1", Onboarding), []byte(`{not json`))

	if _, err := r.LoadOnboarding(ctx, "inst-1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "discarding undecodable record") || !strings.Contains(out, `"request_id":"req-42"`) {
		t.Fatalf("warning not written to the request logger: %s", out)
	}
}
