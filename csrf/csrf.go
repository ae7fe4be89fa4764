// Package csrf implements the stateless double-submit cookie check: the value
// of a readable cookie set at login must be echoed in a request header on
// every state-changing request.
package csrf

import (
	"crypto/subtle"
	"net/http"

	apperrors "github.com/jrsteele09/storefront-auth/internal/errors"
	"github.com/jrsteele09/storefront-auth/internal/logger"
	"github.com/jrsteele09/storefront-auth/token"
)

const (
	CookieName = "csrf"
	HeaderName = "X-CSRF-Token"
)

// Guard checks the double-submit pair. It keeps no server-side state.
type Guard struct {
	cookieName string
	headerName string
}

func NewGuard() *Guard {
	return &Guard{cookieName: CookieName, headerName: HeaderName}
}

// NewToken generates a fresh CSRF token
func NewToken() (string, error) {
	return token.RandomID(token.CSRFTokenLength)
}

// Allow is true only when both values are present and identical
func Allow(header, cookie string) bool {
	if header == "" || cookie == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) == 1
}

// Verify checks the request's header against its cookie
func (g *Guard) Verify(r *http.Request) error {
	var cookieValue string
	if c, err := r.Cookie(g.cookieName); err == nil {
		cookieValue = c.Value
	}
	if !Allow(r.Header.Get(g.headerName), cookieValue) {
		return apperrors.ErrCsrfMismatch
	}
	return nil
}

// Middleware rejects state-changing requests that fail Verify before the
// handler runs. Missing and mismatched tokens get the same response.
func (g *Guard) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			next(w, r)
			return
		}
		if err := g.Verify(r); err != nil {
			logger.Security(logger.EventCsrfRejected).Str("method", r.Method).Str("path", r.URL.Path).Msg("csrf check failed")
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
