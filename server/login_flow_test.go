package server_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/jrsteele09/storefront-auth/auth"
	"github.com/jrsteele09/storefront-auth/authority"
	"github.com/jrsteele09/storefront-auth/envelope"
	apperrors "github.com/jrsteele09/storefront-auth/internal/errors"
	"github.com/jrsteele09/storefront-auth/kvstore"
	"github.com/jrsteele09/storefront-auth/server"
	"github.com/jrsteele09/storefront-auth/sessions"
	"github.com/jrsteele09/storefront-auth/tenants"
	"github.com/jrsteele09/storefront-auth/token"
	"github.com/jrsteele09/storefront-auth/token/jwt"
	"github.com/jrsteele09/storefront-auth/users"
	"github.com/stretchr/testify/require"
)

// fixedAuthority accepts the code "abc" and echoes the nonce back
type fixedAuthority struct {
	now time.Time
}

func (a *fixedAuthority) AuthCodeURL(state, nonce, codeChallenge string) string {
	q := url.Values{}
	q.Set("state", state)
	q.Set("nonce", nonce)
	q.Set("code_challenge", codeChallenge)
	return "https://idp.example.com/authorize?" + q.Encode()
}

func (a *fixedAuthority) Exchange(_ context.Context, code, nonce, _ string) (*authority.TokenResponse, error) {
	if code != "abc" {
		return nil, apperrors.ErrExchange
	}
	return &authority.TokenResponse{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       a.now.Add(time.Hour),
		Claims:       &authority.IDClaims{Subject: "auth0|user-1", Email: "jane@example.com", Nonce: nonce},
	}, nil
}

func (a *fixedAuthority) Refresh(context.Context, string) (*authority.TokenResponse, error) {
	return nil, apperrors.ErrRefresh
}

func newFlowServer(t *testing.T) *server.Server {
	t.Helper()

	now := time.Now()
	store := kvstore.NewMemoryStore()
	keyring, err := envelope.NewKeyring(map[string][]byte{"k1": bytes.Repeat([]byte{7}, envelope.KeySize)}, "k1")
	require.NoError(t, err)
	minter, err := jwt.NewCreator(token.NewHMACSigner(jwtSecret), jwtIssuer, jwtAudience, time.Minute)
	require.NoError(t, err)

	service := sessions.NewService(sessions.Repos{
		States:   sessions.NewStateRepo(store),
		Sessions: sessions.NewRepo(store),
	}, &fixedAuthority{now: now}, keyring, minter)
	flow := auth.NewFlow(service,
		auth.Repos{Users: users.NewKVDirectory(store), Tenants: tenants.NewKVRepo(store)},
		auth.NewRedirectPolicy([]string{"https"}, nil))

	s, err := server.New(newTestConfig(""), flow)
	require.NoError(t, err)
	return s
}

func TestLoginRoundTrip_RedirectIsDecodedOnce(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected string
	}{
		{name: "escaped ampersand", query: "%2Fsearch%3Fq%3Da%2526b", expected: "/search?q=a%26b"},
		{name: "plain path", query: "%2Fdashboard", expected: "/dashboard"},
		{name: "literal percent", query: "%2Foffers%2F50%2525", expected: "/offers/50%25"},
		{name: "no redirect", query: "", expected: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFlowServer(t)

			w := httptest.NewRecorder()
			s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/login?redirect="+tt.query, nil))
			require.Equal(t, http.StatusFound, w.Code)

			authorizeURL, err := url.Parse(w.Header().Get("Location"))
			require.NoError(t, err)
			state := authorizeURL.Query().Get("state")
			require.NotEmpty(t, state)

			w = httptest.NewRecorder()
			s.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
				"/callback?code=abc&state="+url.QueryEscape(state), nil))
			require.Equal(t, http.StatusSeeOther, w.Code)
			require.Equal(t, tt.expected, w.Header().Get("Location"))
		})
	}
}
