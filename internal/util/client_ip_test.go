package util

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8", "192.168.1.10"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xrip       string
		trusted    *TrustedProxies
		want       string
	}{
		{
			name:       "untrusted peer ignores forwarded headers",
			remoteAddr: "198.51.100.10:1234",
			xff:        "203.0.113.5",
			xrip:       "203.0.113.6",
			want:       "198.51.100.10",
		},
		{
			name:       "trusted single host honors forwarded header",
			remoteAddr: "192.168.1.10:443",
			xff:        "203.0.113.9",
			trusted:    trusted,
			want:       "203.0.113.9",
		},
		{
			name:       "chain resolves first untrusted hop from the right",
			remoteAddr: "10.1.2.3:80",
			xff:        "198.51.100.1, 203.0.113.5, 10.0.0.10",
			trusted:    trusted,
			want:       "203.0.113.5",
		},
		{
			name:       "x-real-ip used when forwarded chain is garbage",
			remoteAddr: "10.1.2.3:80",
			xff:        "not-an-ip",
			xrip:       "203.0.113.7",
			trusted:    trusted,
			want:       "203.0.113.7",
		},
		{
			name:       "remote without port",
			remoteAddr: "203.0.113.44",
			want:       "203.0.113.44",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "http://example.com/api/installations", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xrip != "" {
				req.Header.Set("X-Real-IP", tc.xrip)
			}
			if got := ClientIP(req, tc.trusted); got != tc.want {
				t.Fatalf("client ip = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewTrustedProxiesRejectsGarbage(t *testing.T) {
	if _, err := NewTrustedProxies([]string{"10.0.0.0/33"}); err == nil {
		t.Fatalf("expected error for invalid prefix")
	}
	if _, err := NewTrustedProxies([]string{"proxy.local"}); err == nil {
		t.Fatalf("expected error for hostname entry")
	}
	tp, err := NewTrustedProxies([]string{" ", ""})
	if err != nil || tp != nil {
		t.Fatalf("blank entries should yield nil set, got %v %v", tp, err)
	}
}
