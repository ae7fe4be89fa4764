// Package sessions owns the login state and session records: creating login
// challenges, completing the code exchange, sliding session expiry, token
// refresh and logout.
package sessions

import (
	"github.com/jrsteele09/storefront-auth/envelope"
)

// LoginState is the single-use record created when a login starts. All times
// are epoch seconds.
type LoginState struct {
	State        string `json:"state"`
	Nonce        string `json:"nonce"`
	CodeVerifier string `json:"code_verifier"`
	CreatedAt    int64  `json:"created_at"`
	TTL          int64  `json:"ttl"`
}

// LoginChallenge is everything needed to send the browser to the authority
type LoginChallenge struct {
	State         string
	Nonce         string
	CodeVerifier  string
	CodeChallenge string
}

// TokenBundle is the authority's tokens. Only ever persisted sealed in an envelope.
type TokenBundle struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at"` // Access token expiry, epoch seconds
}

// SessionRecord is a logged in browser session
type SessionRecord struct {
	SID       string             `json:"sid"`
	Sub       string             `json:"sub"`
	Email     string             `json:"email,omitempty"`
	Name      string             `json:"name,omitempty"`
	FullName  string             `json:"full_name,omitempty"`
	Roles     []string           `json:"roles,omitempty"`
	CreatedAt int64              `json:"created_at"`
	UpdatedAt int64              `json:"updated_at"`
	TTL       int64              `json:"ttl"` // Sliding absolute expiry, epoch seconds
	TokensEnc *envelope.Envelope `json:"tokens_enc"`
}

// Profile is the identity decoded from the ID token at login
type Profile struct {
	Sub      string
	Email    string
	Name     string
	FullName string
	Roles    []string
}

// LoginResult is returned once a login completes
type LoginResult struct {
	SID     string
	CSRF    string
	Profile Profile
}
