package user

import (
	"testing"
	"time"

	"github.com/jules-labs/lexitrace/pkg/ids"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-signing-key", time.Hour)
	userID := ids.NewUserId()

	token, err := issuer.Issue(userID, RoleLearner)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	gotID, gotRole, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if gotID != userID {
		t.Fatalf("expected user id %s, got %s", userID, gotID)
	}
	if gotRole != RoleLearner {
		t.Fatalf("expected role %s, got %s", RoleLearner, gotRole)
	}
}

func TestTokenIssuerRejectsTamperedSignature(t *testing.T) {
	issuer := NewTokenIssuer("test-signing-key", time.Hour)
	other := NewTokenIssuer("different-signing-key", time.Hour)

	token, err := issuer.Issue(ids.NewUserId(), RoleAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, _, err := other.Verify(token); err == nil {
		t.Fatal("expected verification against a different signing key to fail")
	}
}

func TestTokenIssuerRejectsExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("test-signing-key", -time.Minute)

	token, err := issuer.Issue(ids.NewUserId(), RoleLearner)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, _, err := issuer.Verify(token); err == nil {
		t.Fatal("expected an already-expired token to fail verification")
	}
}
