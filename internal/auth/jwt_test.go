package auth_test

import (
	"testing"
	"time"

	"github.com/devmalhar/ticketdesk/internal/auth"
)

func TestIssueAndVerify(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)

	raw, expiresAt, err := m.Issue("user-1", "a@b.com", "moderator", 3)

	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if until := time.Until(expiresAt); until < 59*time.Minute || until > 61*time.Minute {
		t.Fatalf("expiry %v not about an hour out", until)
	}

	claims, err := m.Verify(raw)

	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if claims.UserID != "user-1" || claims.Email != "a@b.com" || claims.Role != "moderator" {
		t.Fatalf("claims round trip mismatch: %+v", claims)
	}
	if claims.TokenVersion != 3 {
		t.Fatalf("token version = %d, want 3", claims.TokenVersion)
	}
	if claims.JTI == "" {
		t.Fatal("missing jti")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	m1 := auth.NewManager("secret-one", time.Hour)
	m2 := auth.NewManager("secret-two", time.Hour)

	raw, _, err := m1.Issue("user-1", "a@b.com", "user", 0)

	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m2.Verify(raw); err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	m := auth.NewManager("test-secret", -time.Minute)

	raw, _, err := m.Issue("user-1", "a@b.com", "user", 0)

	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m.Verify(raw); err == nil {
		t.Fatal("expired token verified")
	}
}

func TestVerifyGarbage(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)

	if _, err := m.Verify("not-a-token"); err == nil {
		t.Fatal("garbage verified")
	}
}
