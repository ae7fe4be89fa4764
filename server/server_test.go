package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/storefront-auth/auth"
	"github.com/jrsteele09/storefront-auth/internal/config"
	"github.com/jrsteele09/storefront-auth/internalapi"
	"github.com/jrsteele09/storefront-auth/server"
	"github.com/jrsteele09/storefront-auth/token"
	"github.com/jrsteele09/storefront-auth/token/jwt"
	"github.com/stretchr/testify/require"
)

const (
	testSID     = "sid-123"
	testCSRF    = "csrf-456"
	testOrigin  = "https://shop.example.com"
	jwtIssuer   = "storefront-session"
	jwtAudience = "storefront-api"
)

var jwtSecret = bytes.Repeat([]byte("s"), 32)

type testConfig struct {
	config.EnvVars
	config.Cookies
	config.Cors
	config.Session
	config.Downstream
}

func newTestConfig(downstreamURL string) testConfig {
	return testConfig{
		EnvVars: config.EnvVars{Port: "8080", AppName: "storefront-auth", Env: "TEST", BaseURL: "https://shop.example.com"},
		Cookies: config.Cookies{Secure: true, SameSite: http.SameSiteLaxMode},
		Cors:    config.Cors{Origins: config.AllowedOrigins{testOrigin: {}}},
		Session: config.Session{
			SessionTTL:    24 * time.Hour,
			LoginStateTTL: 10 * time.Minute,
			RefreshMargin: time.Minute,
			WriteDebounce: time.Minute,
		},
		Downstream: config.Downstream{APIURL: downstreamURL},
	}
}

// stubFlow records what the handlers ask of the login flow
type stubFlow struct {
	rawRedirect string
	callback    auth.CallbackParams
	callbackErr error
	loggedOut   []string
	endedAll    []string
	sessions    map[string]*auth.SessionInfo
	tokenErr    error
	minter      *jwt.Creator
}

func (f *stubFlow) BuildAuthorizeURL(_ context.Context, rawRedirect string) (string, error) {
	f.rawRedirect = rawRedirect
	return "https://idp.example.com/authorize?state=abc", nil
}

func (f *stubFlow) HandleCallback(_ context.Context, params auth.CallbackParams) (*auth.CallbackResult, error) {
	f.callback = params
	if f.callbackErr != nil {
		return nil, f.callbackErr
	}
	return &auth.CallbackResult{SID: testSID, CSRF: testCSRF, RedirectTarget: "/dashboard"}, nil
}

func (f *stubFlow) SessionInfo(_ context.Context, sid string) *auth.SessionInfo {
	if info, ok := f.sessions[sid]; ok {
		return info
	}
	return &auth.SessionInfo{Status: auth.StatusLoggedOut}
}

func (f *stubFlow) ServiceToken(_ context.Context, sid, tenantID string) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	if _, ok := f.sessions[sid]; !ok {
		return "", auth.ErrNotAuthenticated
	}
	return f.minter.CreateServiceToken("auth0|user-1", tenantID, []string{"photographer"})
}

func (f *stubFlow) Logout(_ context.Context, sid string) error {
	f.loggedOut = append(f.loggedOut, sid)
	return nil
}

func (f *stubFlow) LogoutEverywhere(_ context.Context, sid string) error {
	f.endedAll = append(f.endedAll, sid)
	return nil
}

// downstreamRequest is what the internal API saw
type downstreamRequest struct {
	Path     string
	Cookie   string
	CSRF     string
	Subject  string
	TenantID string
}

type testFixture struct {
	flow       *stubFlow
	server     *server.Server
	downstream chan downstreamRequest
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	signer := token.NewHMACSigner(jwtSecret)
	minter, err := jwt.NewCreator(signer, jwtIssuer, jwtAudience, time.Minute)
	require.NoError(t, err)

	seen := make(chan downstreamRequest, 1)
	inspector := jwt.NewInspector(signer, jwtIssuer, jwtAudience)
	api := httptest.NewServer(internalapi.RequireServiceToken(inspector)(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := internalapi.ClaimsFromContext(r.Context())
		seen <- downstreamRequest{
			Path:     r.URL.Path,
			Cookie:   r.Header.Get("Cookie"),
			CSRF:     r.Header.Get("X-CSRF-Token"),
			Subject:  claims.Subject,
			TenantID: claims.TenantID,
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(api.Close)

	flow := &stubFlow{
		minter: minter,
		sessions: map[string]*auth.SessionInfo{
			testSID: {Status: auth.StatusEnriched, Sub: "auth0|user-1", TenantIDs: []string{"tenant-a"}},
		},
	}
	s, err := server.New(newTestConfig(api.URL), flow)
	require.NoError(t, err)

	return &testFixture{flow: flow, server: s, downstream: seen}
}

func (f *testFixture) do(r *http.Request) *http.Response {
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, r)
	return w.Result()
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func withSession(r *http.Request) *http.Request {
	r.AddCookie(&http.Cookie{Name: "sid", Value: testSID})
	r.AddCookie(&http.Cookie{Name: "csrf", Value: testCSRF})
	return r
}

func TestNew_RejectsInvalidDownstreamURL(t *testing.T) {
	_, err := server.New(newTestConfig("not a url"), &stubFlow{})
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := setupTestFixture(t)
	resp := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginHandler_RedirectsToAuthority(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(httptest.NewRequest(http.MethodGet, "/auth/login?redirect=%2Fdashboard", nil))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "https://idp.example.com/authorize?state=abc", resp.Header.Get("Location"))
	require.Equal(t, "/dashboard", f.flow.rawRedirect)
	require.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
}

func TestCallbackHandler_SetsCookies(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=st.x", nil))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))
	require.Equal(t, auth.CallbackParams{Code: "abc", State: "st.x"}, f.flow.callback)

	sid := cookieByName(resp, "sid")
	require.NotNil(t, sid)
	require.Equal(t, testSID, sid.Value)
	require.True(t, sid.HttpOnly)
	require.True(t, sid.Secure)
	require.Equal(t, http.SameSiteLaxMode, sid.SameSite)
	require.Equal(t, "/", sid.Path)
	require.Equal(t, int((24 * time.Hour).Seconds()), sid.MaxAge)

	csrfCookie := cookieByName(resp, "csrf")
	require.NotNil(t, csrfCookie)
	require.Equal(t, testCSRF, csrfCookie.Value)
	require.False(t, csrfCookie.HttpOnly)
}

func TestCallbackHandler_FormPost(t *testing.T) {
	f := setupTestFixture(t)

	body := url.Values{"code": {"abc"}, "state": {"st"}}.Encode()
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp := f.do(req)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "abc", f.flow.callback.Code)
	require.Equal(t, "st", f.flow.callback.State)
}

func TestCallbackHandler_FailureIsGeneric(t *testing.T) {
	f := setupTestFixture(t)
	f.flow.callbackErr = errors.New("nonce mismatch for auth0|user-1")

	resp := f.do(httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=st&error=access_denied", nil))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/?error=login_failed", resp.Header.Get("Location"))
	require.Equal(t, "access_denied", f.flow.callback.Error)
	require.Nil(t, cookieByName(resp, "sid"))
	require.Nil(t, cookieByName(resp, "csrf"))
}

func TestLogoutHandler(t *testing.T) {
	t.Run("requires csrf", func(t *testing.T) {
		f := setupTestFixture(t)
		resp := f.do(withSession(httptest.NewRequest(http.MethodPost, "/auth/logout", nil)))
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.Empty(t, f.flow.loggedOut)
	})

	t.Run("mismatched csrf", func(t *testing.T) {
		f := setupTestFixture(t)
		req := withSession(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
		req.Header.Set("X-CSRF-Token", "other")
		resp := f.do(req)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.Empty(t, f.flow.loggedOut)
	})

	t.Run("clears cookies", func(t *testing.T) {
		f := setupTestFixture(t)
		req := withSession(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
		req.Header.Set("X-CSRF-Token", testCSRF)

		resp := f.do(req)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		require.Equal(t, []string{testSID}, f.flow.loggedOut)

		for _, name := range []string{"sid", "csrf"} {
			c := cookieByName(resp, name)
			require.NotNil(t, c, name)
			require.Empty(t, c.Value)
			require.Negative(t, c.MaxAge)
		}
	})

	t.Run("get not allowed", func(t *testing.T) {
		f := setupTestFixture(t)
		resp := f.do(withSession(httptest.NewRequest(http.MethodGet, "/auth/logout", nil)))
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestLogoutAllHandler(t *testing.T) {
	t.Run("requires csrf", func(t *testing.T) {
		f := setupTestFixture(t)
		resp := f.do(withSession(httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil)))
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.Empty(t, f.flow.endedAll)
	})

	t.Run("ends every session and clears cookies", func(t *testing.T) {
		f := setupTestFixture(t)
		req := withSession(httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil))
		req.Header.Set("X-CSRF-Token", testCSRF)

		resp := f.do(req)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		require.Equal(t, []string{testSID}, f.flow.endedAll)
		require.Empty(t, f.flow.loggedOut)
		c := cookieByName(resp, "sid")
		require.NotNil(t, c)
		require.Negative(t, c.MaxAge)
	})
}

func TestSessionHandler(t *testing.T) {
	t.Run("logged out", func(t *testing.T) {
		f := setupTestFixture(t)
		resp := f.do(httptest.NewRequest(http.MethodGet, "/api/session", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

		var info auth.SessionInfo
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
		require.Equal(t, auth.StatusLoggedOut, info.Status)
		require.Nil(t, cookieByName(resp, "csrf"))
	})

	t.Run("logged in", func(t *testing.T) {
		f := setupTestFixture(t)
		resp := f.do(withSession(httptest.NewRequest(http.MethodGet, "/api/session", nil)))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var info auth.SessionInfo
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
		require.Equal(t, auth.StatusEnriched, info.Status)
		require.Equal(t, []string{"tenant-a"}, info.TenantIDs)
		require.Nil(t, cookieByName(resp, "csrf"))
	})

	t.Run("reissues missing csrf cookie", func(t *testing.T) {
		f := setupTestFixture(t)
		req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: testSID})

		resp := f.do(req)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		c := cookieByName(resp, "csrf")
		require.NotNil(t, c)
		require.NotEmpty(t, c.Value)
		require.False(t, c.HttpOnly)
	})
}

func TestInternalAPI_ForwardsWithServiceToken(t *testing.T) {
	f := setupTestFixture(t)

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/internal/orders/42", nil))
	req.Header.Set("X-Tenant-ID", "tenant-a")
	resp := f.do(req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(body))

	seen := <-f.downstream
	require.Equal(t, "/orders/42", seen.Path)
	require.Empty(t, seen.Cookie)
	require.Empty(t, seen.CSRF)
	require.Equal(t, "auth0|user-1", seen.Subject)
	require.Equal(t, "tenant-a", seen.TenantID)
}

func TestInternalAPI_StateChangeNeedsCSRF(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(withSession(httptest.NewRequest(http.MethodPost, "/api/internal/orders", strings.NewReader(`{}`))))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/internal/orders", strings.NewReader(`{}`)))
	req.Header.Set("X-CSRF-Token", testCSRF)
	resp = f.do(req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/orders", (<-f.downstream).Path)
}

func TestInternalAPI_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		sid      string
		tokenErr error
		status   int
	}{
		{name: "no session cookie", status: http.StatusUnauthorized},
		{name: "unknown session", sid: "gone", status: http.StatusUnauthorized},
		{name: "tenant not permitted", sid: testSID, tokenErr: auth.ErrTenantForbidden, status: http.StatusForbidden},
		{name: "minting failed", sid: testSID, tokenErr: errors.New("boom"), status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.flow.tokenErr = tt.tokenErr

			req := httptest.NewRequest(http.MethodGet, "/api/internal/orders", nil)
			if tt.sid != "" {
				req.AddCookie(&http.Cookie{Name: "sid", Value: tt.sid})
			}
			resp := f.do(req)
			require.Equal(t, tt.status, resp.StatusCode)
			require.Empty(t, f.downstream)
		})
	}
}

func TestCorsMiddleware(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Origin", testOrigin)
	resp := f.do(req)
	require.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp = f.do(req)
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestRecoverMiddleware(t *testing.T) {
	f := setupTestFixture(t)
	handler := server.ChainMiddleware(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}, f.server.APIMiddleware()...)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
}
