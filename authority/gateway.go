// Package authority talks to the external OIDC identity provider: it builds
// authorize URLs and performs the backchannel code and refresh exchanges.
package authority

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/storefront-auth/internal/errors"
	"golang.org/x/oauth2"
)

// Config identifies the authority and this storefront as its client
type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	HTTPClient   *http.Client // Optional, used for discovery, JWKS and token calls
}

// TokenResponse is what the authority returned from a code or refresh exchange
type TokenResponse struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	Expiry       time.Time // Access token expiry, zero if the authority did not say
	Claims       *IDClaims // Verified ID token claims, nil when no ID token was returned
}

// Gateway is the storefront's OIDC client
type Gateway struct {
	oauth      *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	httpClient *http.Client
}

// New discovers the authority's endpoints and keys
func New(ctx context.Context, cfg Config) (*Gateway, error) {
	if cfg.Issuer == "" || cfg.ClientID == "" {
		return nil, errors.New("[authority.New] issuer and client id are required")
	}
	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
	}

	return &Gateway{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
		},
		verifier: provider.Verifier(&oidc.Config{
			ClientID: cfg.ClientID,
		}),
		httpClient: cfg.HTTPClient,
	}, nil
}

func (g *Gateway) clientContext(ctx context.Context) context.Context {
	if g.httpClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, g.httpClient)
}

// AuthCodeURL builds the authorization endpoint URL for the browser redirect
func (g *Gateway) AuthCodeURL(state, nonce, codeChallenge string) string {
	return g.oauth.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange trades an authorization code for tokens and verifies the ID token,
// including that it echoes nonce. Every failure wraps ErrExchange.
func (g *Gateway) Exchange(ctx context.Context, code, nonce, codeVerifier string) (*TokenResponse, error) {
	ctx = g.clientContext(ctx)

	oauth2Token, err := g.oauth.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("[Gateway.Exchange] token request: %w: %w", apperrors.ErrExchange, err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("[Gateway.Exchange] no ID token in response: %w", apperrors.ErrExchange)
	}

	claims, err := g.verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("[Gateway.Exchange] %w: %w", apperrors.ErrExchange, err)
	}

	// Validate nonce to prevent replay attacks
	if nonce == "" || subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(nonce)) != 1 {
		return nil, fmt.Errorf("[Gateway.Exchange] nonce mismatch: %w", apperrors.ErrExchange)
	}

	return &TokenResponse{
		AccessToken:  oauth2Token.AccessToken,
		IDToken:      rawIDToken,
		RefreshToken: oauth2Token.RefreshToken,
		Expiry:       oauth2Token.Expiry,
		Claims:       claims,
	}, nil
}

// Refresh performs a refresh-token grant. Every failure wraps ErrRefresh. When
// the authority does not rotate the refresh token the old one is returned.
func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("[Gateway.Refresh] no refresh token: %w", apperrors.ErrRefresh)
	}
	ctx = g.clientContext(ctx)

	oauth2Token, err := g.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("[Gateway.Refresh] token request: %w: %w", apperrors.ErrRefresh, err)
	}

	resp := &TokenResponse{
		AccessToken:  oauth2Token.AccessToken,
		RefreshToken: oauth2Token.RefreshToken,
		Expiry:       oauth2Token.Expiry,
	}
	if resp.RefreshToken == "" {
		resp.RefreshToken = refreshToken
	}

	// ID tokens on refresh are optional
	if rawIDToken, ok := oauth2Token.Extra("id_token").(string); ok && rawIDToken != "" {
		claims, err := g.verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("[Gateway.Refresh] %w: %w", apperrors.ErrRefresh, err)
		}
		resp.IDToken = rawIDToken
		resp.Claims = claims
	}
	return resp, nil
}

func (g *Gateway) verify(ctx context.Context, rawIDToken string) (*IDClaims, error) {
	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("ID token verification failed: %w", err)
	}
	var claims IDClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}
	claims.Subject = idToken.Subject
	return &claims, nil
}
