package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	sec := "secret123"
	sid := "abc"
	exp := time.Now().Add(5 * time.Minute).Unix()

	tok, err := GenerateLiveToken(sec, sid, exp)
	if err != nil {
		t.Fatalf("gen: %v", err)
	}
	gotSID, gotExp, err := ValidateLiveToken(sec, tok, sid, time.Now(), time.Minute)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if gotSID != sid || gotExp != exp {
		t.Fatalf("mismatch: %s/%d", gotSID, gotExp)
	}
	if _, _, err := ValidateLiveToken(sec, tok, "other", time.Now(), 0); !errors.Is(err, ErrTokenSID) {
		t.Fatalf("expected ErrTokenSID, got %v", err)
	}
}

func TestBadSignature(t *testing.T) {
	exp := time.Now().Add(5 * time.Minute).Unix()
	tok, _ := GenerateLiveToken("secret123", "abc", exp)
	if _, _, err := ValidateLiveToken("other-secret", tok, "abc", time.Now(), 0); !errors.Is(err, ErrTokenSig) {
		t.Fatalf("expected ErrTokenSig, got %v", err)
	}
	if _, _, err := ValidateLiveToken("secret123", "%%%", "abc", time.Now(), 0); !errors.Is(err, ErrTokenFormat) {
		t.Fatalf("expected ErrTokenFormat, got %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	exp := time.Now().Add(-2 * time.Minute).Unix()
	tok, _ := GenerateLiveToken("s", "abc", exp)
	if _, _, err := ValidateLiveToken("s", tok, "", time.Now(), 30*time.Second); !errors.Is(err, ErrTokenExp) {
		t.Fatalf("expected ErrTokenExp, got %v", err)
	}
	if _, _, err := ValidateLiveToken("s", tok, "", time.Now(), 5*time.Minute); err != nil {
		t.Fatalf("skew should admit recently expired token: %v", err)
	}
	if _, err := GenerateLiveToken("", "abc", exp); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}
