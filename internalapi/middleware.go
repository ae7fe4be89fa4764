package internalapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/storefront-auth/internal/logger"
	"github.com/jrsteele09/storefront-auth/token/jwt"
)

type contextKey struct{}

// ServiceTokenVerifier verifies a raw service token
type ServiceTokenVerifier interface {
	Verify(rawToken string) (*jwt.ServiceClaims, error)
}

// RequireServiceToken admits only requests bearing a valid service token and
// puts its claims on the request context.
func RequireServiceToken(verifier ServiceTokenVerifier) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="internal"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			claims, err := verifier.Verify(raw)
			if err != nil {
				logger.Security(logger.EventServiceTokenFailed).Err(err).Str("path", r.URL.Path).Msg("service token rejected")
				w.Header().Set("WWW-Authenticate", `Bearer realm="internal", error="invalid_token"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, claims)))
		}
	}
}

// ClaimsFromContext returns the verified service token claims
func ClaimsFromContext(ctx context.Context) (*jwt.ServiceClaims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*jwt.ServiceClaims)
	return claims, ok
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, raw, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
