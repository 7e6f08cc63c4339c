package auth

import (
	"context"
	"testing"
	"time"

	"github.com/toolgrid/toolgrid-go/pkg/errors"
)

func TestIssueAndValidateToken(t *testing.T) {
	store := NewTokenStore(nil)

	tokenID, token, err := store.IssueToken("alice", "tools:read")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if tokenID == "" {
		t.Fatal("Expected a non-empty token id")
	}
	if token.UserID != "alice" {
		t.Errorf("Expected token user 'alice', got %q", token.UserID)
	}
	if token.TokenType != "Bearer" {
		t.Errorf("Expected Bearer token type, got %q", token.TokenType)
	}
	if token.AccessToken == "" {
		t.Error("Expected a non-empty access token")
	}

	validated, err := store.ValidateToken(context.Background(), tokenID)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if validated.AccessToken != token.AccessToken {
		t.Error("Expected validated token to match the issued token")
	}
}

func TestValidateUnknownToken(t *testing.T) {
	store := NewTokenStore(nil)

	_, err := store.ValidateToken(context.Background(), "no-such-id")
	if err == nil {
		t.Fatal("Expected validation of an unknown id to fail")
	}
	if !errors.IsCategory(err, errors.CategoryAuth) {
		t.Errorf("Expected auth error, got %v", err)
	}
}

func TestRevokeToken(t *testing.T) {
	store := NewTokenStore(nil)

	tokenID, _, err := store.IssueToken("alice")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if err := store.RevokeToken(tokenID); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}

	if _, err := store.ValidateToken(context.Background(), tokenID); err == nil {
		t.Error("Expected validation of a revoked token to fail")
	}

	if err := store.RevokeToken("no-such-id"); err == nil {
		t.Error("Expected revoking an unknown id to fail")
	}
}

func TestExpiredToken(t *testing.T) {
	store := NewTokenStore(&TokenStoreConfig{TokenExpiry: time.Millisecond})

	tokenID, _, err := store.IssueToken("alice")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := store.ValidateToken(context.Background(), tokenID); err == nil {
		t.Error("Expected validation of an expired token to fail")
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	live := &Token{ExpiresAt: now.Add(time.Hour)}
	dead := &Token{ExpiresAt: now.Add(-time.Hour)}

	if live.Expired() {
		t.Error("Expected a future expiry not to be expired")
	}
	if !dead.Expired() {
		t.Error("Expected a past expiry to be expired")
	}
}
