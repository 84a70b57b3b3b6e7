package util

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerFromContextFallsBackToDefault(t *testing.T) {
	if LoggerFromContext(context.Background()) != slog.Default() {
		t.Fatalf("expected default logger")
	}
	custom := slog.Default().With("k", "v")
	ctx := ContextWithLogger(context.Background(), custom)
	if LoggerFromContext(ctx) != custom {
		t.Fatalf("expected context logger")
	}
}

func TestWithRequestLogReportsStatus(t *testing.T) {
	var gotStatus int
	h := WithRequestLog("stylist", func(_ *http.Request, status int, _ time.Duration) {
		gotStatus = status
	}, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/style-checks", nil))
	if gotStatus != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", gotStatus)
	}

	gotStatus = 0
	h = WithRequestLog("", func(_ *http.Request, status int, _ time.Duration) {
		gotStatus = status
	}, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if gotStatus != http.StatusOK {
		t.Fatalf("implicit status = %d, want 200", gotStatus)
	}
}
