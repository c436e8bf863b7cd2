package auth

import (
	"testing"

	"github.com/spec-kit/order-insights/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, exp, err := tm.GenerateToken("acct-1", "vivek@mm.com", domain.RoleTeamLeader)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if exp.IsZero() {
		t.Fatal("expiry not set")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.AccountID != "acct-1" {
		t.Errorf("account id = %q, want acct-1", claims.AccountID)
	}
	if claims.Email != "vivek@mm.com" {
		t.Errorf("email = %q, want vivek@mm.com", claims.Email)
	}
	if claims.Role != domain.RoleTeamLeader {
		t.Errorf("role = %q, want team-leader", claims.Role)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 60).GenerateToken("acct-1", "tarun@mm.com", domain.RoleEditor)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := NewTokenManager("secret-b", 60).ParseToken(token); err == nil {
		t.Fatal("token signed with another secret was accepted")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, err := NewTokenManager("secret", 60).ParseToken("not.a.token"); err == nil {
		t.Fatal("garbage token was accepted")
	}
}
