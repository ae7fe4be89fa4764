package server

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/jrsteele09/storefront-auth/auth"
	"github.com/jrsteele09/storefront-auth/csrf"
	"github.com/jrsteele09/storefront-auth/internalapi"
	"github.com/rs/zerolog/log"
)

// newInternalAPIProxy forwards /api/internal/* to the downstream API, replacing
// the browser's cookies with a short lived service token for the session
func (s *Server) newInternalAPIProxy(target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = "/" + strings.TrimPrefix(pr.In.URL.Path, RouteAPIInternal)
			pr.Out.URL.RawPath = ""
			pr.SetURL(target)
			pr.SetXForwarded()

			// Browser credentials never leave this service
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del(csrf.HeaderName)
		},
		Transport: &internalapi.Transport{
			Base: http.DefaultTransport,
			Token: func(r *http.Request) (string, error) {
				ctx := r.Context()
				return s.flow.ServiceToken(ctx, sessionIDFromContext(ctx), tenantIDFromContext(ctx))
			},
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			switch {
			case errors.Is(err, auth.ErrNotAuthenticated):
				writeJSONError(w, "unauthorized", "login required", http.StatusUnauthorized)
			case errors.Is(err, auth.ErrTenantForbidden):
				writeJSONError(w, "forbidden", "tenant not permitted", http.StatusForbidden)
			default:
				log.Err(err).Str("path", r.URL.Path).Msg("internal API call failed")
				writeJSONError(w, "bad_gateway", "upstream unavailable", http.StatusBadGateway)
			}
		},
	}
}

// InternalAPIHandler proxies a session authenticated call to the downstream API
func (s *Server) InternalAPIHandler() http.HandlerFunc {
	return ChainMiddleware(s.proxy.ServeHTTP, s.RequireSession())
}
