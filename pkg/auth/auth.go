// Package auth provides authentication configuration, token validation, and
// role-based access control for the tool-calling runtime. Transports consume
// AuthConfig to decorate outbound requests; the executor consumes the RBAC
// manager for per-call authorization.
package auth

import (
	"context"
	"time"
)

// Type identifies an authentication scheme
type Type string

const (
	// TypeNone disables authentication
	TypeNone Type = "none"
	// TypeBasic uses a base64-encoded username/password header
	TypeBasic Type = "basic"
	// TypeBearer uses a static bearer token header
	TypeBearer Type = "bearer"
	// TypeOAuth2 resolves a live access token per request via a TokenValidator
	TypeOAuth2 Type = "oauth2"
	// TypeAPIKey uses a static API key header
	TypeAPIKey Type = "apikey"
)

// Config configures authentication for a transport.
//
// Credentials are scheme-specific:
//   - basic:  "username", "password"
//   - bearer: "token"
//   - apikey: "api_key" and optionally "header" (default X-API-Key)
//   - oauth2: "token_id", "user_id", resolved at send time against the
//     injected TokenValidator; the transport never issues tokens itself.
type Config struct {
	Type        Type              `json:"auth_type"`
	Credentials map[string]string `json:"credentials,omitempty"`
}

// Token is a validated access token
type Token struct {
	// AccessToken is the credential presented to the remote endpoint
	AccessToken string `json:"access_token"`

	// TokenType describes the token type (e.g. "Bearer")
	TokenType string `json:"token_type"`

	// UserID is the user the token was issued to
	UserID string `json:"user_id"`

	// Scopes granted to this token
	Scopes []string `json:"scopes,omitempty"`

	// IssuedAt and ExpiresAt bound the token lifetime
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is past its expiry
func (t *Token) Expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// TokenValidator resolves a token id to a live access token. Concrete token
// issuance is an external collaborator's responsibility; the runtime only
// requires this validation contract.
type TokenValidator interface {
	// ValidateToken returns the token for id, or an error if the id is
	// unknown, the token is revoked, or it has expired.
	ValidateToken(ctx context.Context, tokenID string) (*Token, error)
}
