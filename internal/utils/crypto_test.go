package utils

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestSignAndVerifyAuth(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	header := SignAuth("secret", 42, now)

	data, err := VerifyAuth(header, "secret", time.Hour, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("VerifyAuth: %v", err)
	}
	if data.UserID != 42 {
		t.Fatalf("expected user 42, got %d", data.UserID)
	}
	if !data.AuthDate.Equal(now) {
		t.Fatalf("expected auth date %v, got %v", now, data.AuthDate)
	}
}

func TestVerifyAuthRejectsTampering(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	q, _ := url.ParseQuery(SignAuth("secret", 42, now))
	q.Set("user", "43")

	if _, err := VerifyAuth(q.Encode(), "secret", 0, now); !errors.Is(err, ErrAuthBadHash) {
		t.Fatalf("expected ErrAuthBadHash, got %v", err)
	}
	if _, err := VerifyAuth(SignAuth("other", 42, now), "secret", 0, now); !errors.Is(err, ErrAuthBadHash) {
		t.Fatalf("expected ErrAuthBadHash for wrong secret, got %v", err)
	}
	if _, err := VerifyAuth("user=42", "secret", 0, now); !errors.Is(err, ErrAuthMissingHash) {
		t.Fatalf("expected ErrAuthMissingHash, got %v", err)
	}
}

func TestVerifyAuthExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	header := SignAuth("secret", 1, now)
	if _, err := VerifyAuth(header, "secret", time.Hour, now.Add(2*time.Hour)); !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if _, err := VerifyAuth(header, "secret", 0, now.Add(2*time.Hour)); err != nil {
		t.Fatalf("expiry disabled, got %v", err)
	}
}
