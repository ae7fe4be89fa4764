package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/storefront-auth/csrf"
)

const (
	// sessionCookieName holds the opaque session id, never readable by scripts
	sessionCookieName = "sid"
)

// sessionID reads the session cookie
func sessionID(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) cookie(name, value string, maxAge int, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.config.GetCookieDomain(),
		HttpOnly: httpOnly,
		Secure:   s.config.GetCookieSecure(),
		SameSite: s.config.GetCookieSameSite(),
		MaxAge:   maxAge,
	}
}

// SetLoginSessionCookies sets the HTTP-only session cookie and the script
// readable CSRF cookie
func (s *Server) SetLoginSessionCookies(w http.ResponseWriter, sid, csrfToken string) {
	maxAge := int(s.config.GetSessionTTL() / time.Second)
	http.SetCookie(w, s.cookie(sessionCookieName, sid, maxAge, true))
	s.SetCSRFCookie(w, csrfToken)
}

func (s *Server) SetCSRFCookie(w http.ResponseWriter, csrfToken string) {
	maxAge := int(s.config.GetSessionTTL() / time.Second)
	http.SetCookie(w, s.cookie(csrf.CookieName, csrfToken, maxAge, false))
}

// ClearLoginSessionCookies expires both login cookies
func (s *Server) ClearLoginSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie(sessionCookieName, "", -1, true))
	http.SetCookie(w, s.cookie(csrf.CookieName, "", -1, false))
}

// redirectSuccess sends the browser on after a completed action
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError sends the browser to path with a generic error code
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorCode string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(errorCode), http.StatusSeeOther)
}
