package util

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithRequestIDPropagatesIncomingHeader(t *testing.T) {
	const incoming = "req-incoming-123"
	handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := RequestIDFromRequest(r); got != incoming {
			t.Fatalf("unexpected request id in context: got %q want %q", got, incoming)
		}
		if LoggerFromContext(r.Context()) == nil {
			t.Fatal("expected request logger in context")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", incoming)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != incoming {
		t.Fatalf("unexpected response request id: got %q want %q", got, incoming)
	}
}

func TestWithRequestIDReplacesMissingOrOversizedHeader(t *testing.T) {
	for _, incoming := range []string{"", strings.Repeat("x", 200)} {
		var seen string
		handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestIDFromRequest(r)
		}))
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		if incoming != "" {
			req.Header.Set("X-Request-Id", incoming)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if seen == "" || seen == incoming {
			t.Fatalf("expected generated id, got %q", seen)
		}
		if got := rec.Header().Get("X-Request-Id"); got != seen {
			t.Fatalf("response header %q does not match context id %q", got, seen)
		}
	}
}
