package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/storefront-auth/token"
)

const serviceTokenType = "service"

// ServiceClaims are the claims carried by an internal service token
type ServiceClaims struct {
	TenantID  string   `json:"tenant,omitempty"` // Tenant the call acts on behalf of
	Roles     []string `json:"roles,omitempty"`  // Claim-derived roles from the session
	TokenType string   `json:"token_type"`       // Always "service"
	jwtlib.RegisteredClaims
}

// CreatorOption configures a Creator
type CreatorOption func(*Creator)

// WithCreatorNowFunc overrides the clock (primarily for testing)
func WithCreatorNowFunc(now func() time.Time) CreatorOption {
	return func(c *Creator) {
		c.nowFunc = now
	}
}

// Creator mints short-lived internal service tokens for calls from the session
// layer to downstream internal APIs. Tokens are signed, not encrypted, and never stored.
type Creator struct {
	signer   token.Signer
	issuer   string
	audience string
	ttl      time.Duration
	nowFunc  func() time.Time
}

// NewCreator creates a new service token creator
func NewCreator(signer token.Signer, issuer, audience string, ttl time.Duration, options ...CreatorOption) (*Creator, error) {
	if signer == nil {
		return nil, errors.New("[jwt.NewCreator] signer is required")
	}
	if issuer == "" || audience == "" {
		return nil, errors.New("[jwt.NewCreator] issuer and audience are required")
	}
	if ttl <= 0 {
		return nil, errors.New("[jwt.NewCreator] ttl must be positive")
	}
	c := &Creator{
		signer:   signer,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// CreateServiceToken mints a token for sub, optionally scoped to a tenant and roles
func (c *Creator) CreateServiceToken(sub, tenantID string, roles []string) (string, error) {
	if sub == "" {
		return "", errors.New("[jwt.CreateServiceToken] subject is required")
	}
	now := c.nowFunc()
	claims := ServiceClaims{
		TenantID:  tenantID,
		Roles:     roles,
		TokenType: serviceTokenType,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    c.issuer,                              // Fixed issuer of the session layer
			Subject:   sub,                                   // Authority-issued subject
			Audience:  jwtlib.ClaimStrings{c.audience},       // Downstream internal APIs
			IssuedAt:  jwtlib.NewNumericDate(now),            // Issued At
			ExpiresAt: jwtlib.NewNumericDate(now.Add(c.ttl)), // Short expiry
			ID:        uuid.New().String(),                   // Unique per call
		},
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}
	return signed, nil
}
