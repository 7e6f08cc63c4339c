package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/toolgrid/toolgrid-go/pkg/errors"
)

// TokenStore is an in-memory TokenValidator. It issues, validates, and
// revokes access tokens keyed by an opaque token id. Production deployments
// typically replace it with a validator backed by an external issuer; the
// store exists so the OAuth2 path is exercisable end-to-end.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*storedToken

	tokenExpiry time.Duration
	tokenLength int
}

type storedToken struct {
	token   *Token
	revoked bool
}

// TokenStoreConfig configures the in-memory token store
type TokenStoreConfig struct {
	// TokenExpiry defines access token lifetime (default: 1 hour)
	TokenExpiry time.Duration

	// TokenLength in bytes (default: 32)
	TokenLength int
}

// NewTokenStore creates a new in-memory token store
func NewTokenStore(config *TokenStoreConfig) *TokenStore {
	if config == nil {
		config = &TokenStoreConfig{}
	}
	if config.TokenExpiry == 0 {
		config.TokenExpiry = time.Hour
	}
	if config.TokenLength == 0 {
		config.TokenLength = 32
	}

	return &TokenStore{
		tokens:      make(map[string]*storedToken),
		tokenExpiry: config.TokenExpiry,
		tokenLength: config.TokenLength,
	}
}

// IssueToken mints a token for userID and returns its token id. The id is
// what callers place in AuthConfig credentials; the access token itself never
// leaves the validator except through ValidateToken.
func (s *TokenStore) IssueToken(userID string, scopes ...string) (string, *Token, error) {
	access, err := s.generateToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	token := &Token{
		AccessToken: access,
		TokenType:   "Bearer",
		UserID:      userID,
		Scopes:      scopes,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.tokenExpiry),
	}

	tokenID := uuid.NewString()

	s.mu.Lock()
	s.tokens[tokenID] = &storedToken{token: token}
	s.mu.Unlock()

	return tokenID, token, nil
}

// ValidateToken implements TokenValidator
func (s *TokenStore) ValidateToken(ctx context.Context, tokenID string) (*Token, error) {
	s.mu.RLock()
	stored, ok := s.tokens[tokenID]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.AuthorizationError(fmt.Sprintf("unknown token id %s", tokenID))
	}
	if stored.revoked {
		return nil, errors.AuthorizationError("token has been revoked")
	}
	if stored.token.Expired() {
		return nil, errors.AuthorizationError("token has expired")
	}
	return stored.token, nil
}

// RevokeToken invalidates a token id, preventing further use
func (s *TokenStore) RevokeToken(tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tokens[tokenID]
	if !ok {
		return fmt.Errorf("unknown token id %s", tokenID)
	}
	stored.revoked = true
	return nil
}

// generateToken creates a URL-safe random token
func (s *TokenStore) generateToken() (string, error) {
	buf := make([]byte, s.tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
