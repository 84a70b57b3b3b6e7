package installtoken

import (
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	iss, err := NewIssuer(Options{Secret: testSecret})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := iss.Issue("inst-42")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := iss.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != "inst-42" {
		t.Fatalf("installation id = %q", got)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	iss, err := NewIssuer(Options{Secret: testSecret, TTL: time.Hour, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := iss.Issue("inst-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = now.Add(2 * time.Hour)
	if _, err := iss.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyRejectsForeignSecretAndAlgorithm(t *testing.T) {
	iss, _ := NewIssuer(Options{Secret: testSecret})
	other, _ := NewIssuer(Options{Secret: strings.Repeat("z", 32)})
	token, _ := other.Issue("inst-1")
	if _, err := iss.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign-secret token rejected, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    DefaultIssuer,
		Subject:   "inst-1",
		Audience:  jwt.ClaimStrings{DefaultIssuer},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := iss.Verify(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg=none rejected, got %v", err)
	}
}

func TestNewIssuerRequiresLongSecret(t *testing.T) {
	if _, err := NewIssuer(Options{Secret: "short"}); err == nil {
		t.Fatalf("expected error for short secret")
	}
}
