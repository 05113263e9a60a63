package auth

import (
	"context"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer("test-secret")

	token, err := issuer.Issue("user-1", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != "user-1" {
		t.Errorf("principal = %q, want %q", got, "user-1")
	}
}

func TestVerifyExpired(t *testing.T) {
	issuer := NewIssuer("test-secret")

	token, err := issuer.Issue("user-1", -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := issuer.Verify(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := NewIssuer("secret-a").Issue("user-1", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := NewIssuer("secret-b").Verify(token); err == nil {
		t.Fatal("expected error for token signed with a different secret")
	}
}

func TestVerifyGarbage(t *testing.T) {
	if _, err := NewIssuer("test-secret").Verify("not-a-token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()

	if id, ok := FromContext(ctx); ok || id != "" {
		t.Errorf("empty context: got %q, %v", id, ok)
	}

	ctx = WithPrincipal(ctx, "user-1")
	id, ok := FromContext(ctx)
	if !ok || id != "user-1" {
		t.Errorf("got %q, %v, want %q, true", id, ok, "user-1")
	}
	if PrincipalID(ctx) != "user-1" {
		t.Errorf("PrincipalID = %q, want %q", PrincipalID(ctx), "user-1")
	}
}
