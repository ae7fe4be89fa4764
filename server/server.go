// Package server is the storefront's HTTP surface for login, logout, the
// session projection and session-authenticated calls to internal APIs.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/jrsteele09/storefront-auth/auth"
	"github.com/jrsteele09/storefront-auth/csrf"
	"github.com/jrsteele09/storefront-auth/internal/config"
	"github.com/rs/zerolog/log"
)

// Config is the part of the process configuration the server reads
type Config interface {
	config.EnvConfig
	config.CookieConfig
	config.CorsConfig
	config.SessionConfig
	config.DownstreamConfig
}

// AuthFlow is the login orchestrator the handlers drive
type AuthFlow interface {
	BuildAuthorizeURL(ctx context.Context, redirect string) (string, error)
	HandleCallback(ctx context.Context, params auth.CallbackParams) (*auth.CallbackResult, error)
	SessionInfo(ctx context.Context, sid string) *auth.SessionInfo
	ServiceToken(ctx context.Context, sid, tenantID string) (string, error)
	Logout(ctx context.Context, sid string) error
	LogoutEverywhere(ctx context.Context, sid string) error
}

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
	config Config
	flow   AuthFlow
	csrf   *csrf.Guard
	proxy  *httputil.ReverseProxy // Nil when no downstream API is configured
}

func New(cfg Config, flow AuthFlow) (*Server, error) {
	s := &Server{
		env:    cfg.GetEnv(),
		mux:    http.NewServeMux(),
		config: cfg,
		flow:   flow,
		csrf:   csrf.NewGuard(),
	}

	if raw := cfg.GetDownstreamAPIURL(); raw != "" {
		target, err := url.Parse(raw)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("[Server New] invalid downstream API url %q", raw)
		}
		s.proxy = s.newInternalAPIProxy(target)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		logRoute(method, path)
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Debug().Msgf("[%s%s%s] %s", color, paddedMethod, ResetColor, path)
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}
