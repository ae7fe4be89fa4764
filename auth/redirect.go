package auth

import (
	"net/url"
	"strings"

	"github.com/jrsteele09/storefront-auth/internal/logger"
)

const defaultRedirect = "/"

// RedirectPolicy decides which post-login redirect targets are safe
type RedirectPolicy struct {
	allowedSchemes map[string]bool
	allowedHosts   map[string]bool // Empty allows any host
}

// NewRedirectPolicy allows root-relative paths plus absolute URLs with one of
// schemes, optionally restricted to hosts.
func NewRedirectPolicy(schemes, hosts []string) *RedirectPolicy {
	p := &RedirectPolicy{
		allowedSchemes: map[string]bool{},
		allowedHosts:   map[string]bool{},
	}
	if len(schemes) == 0 {
		schemes = []string{"https"}
	}
	for _, s := range schemes {
		p.allowedSchemes[strings.ToLower(strings.TrimSpace(s))] = true
	}
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			p.allowedHosts[h] = true
		}
	}
	return p
}

// Sanitize returns target when it is safe and "/" otherwise. An empty target
// is "/" without being treated as a rejection.
func (p *RedirectPolicy) Sanitize(target string) string {
	if target == "" {
		return defaultRedirect
	}
	if p.Allowed(target) {
		return target
	}
	logger.Security(logger.EventRedirectRejected).Str("target", target).Msg("unsafe redirect target replaced")
	return defaultRedirect
}

// Allowed reports whether target may be redirected to
func (p *RedirectPolicy) Allowed(target string) bool {
	if strings.ContainsAny(target, "\\\r\n\t") {
		return false
	}
	if strings.HasPrefix(target, "/") {
		// "//host" is protocol relative
		return !strings.HasPrefix(target, "//")
	}

	u, err := url.Parse(target)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	if !p.allowedSchemes[strings.ToLower(u.Scheme)] {
		return false
	}
	if len(p.allowedHosts) > 0 && !p.allowedHosts[strings.ToLower(u.Hostname())] {
		return false
	}
	return true
}
