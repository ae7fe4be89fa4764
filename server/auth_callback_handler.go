package server

import (
	"net/http"

	"github.com/jrsteele09/storefront-auth/auth"
	"github.com/rs/zerolog/log"
)

const loginFailed = "login_failed"

// LoginHandler starts a login and sends the browser to the authority
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorizeURL, err := s.flow.BuildAuthorizeURL(r.Context(), r.URL.Query().Get("redirect"))
		if err != nil {
			log.Err(err).Msg("failed to start login")
			redirectWithError(w, r, RouteLoginFailed, loginFailed)
			return
		}
		http.Redirect(w, r, authorizeURL, http.StatusFound)
	}
}

// OAuthCallbackHandler completes the login the authority redirected back with.
// Every failure looks the same to the browser.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue works for both query params and POST form data
		params := auth.CallbackParams{
			Code:             r.FormValue("code"),
			State:            r.FormValue("state"),
			Error:            r.FormValue("error"),
			ErrorDescription: r.FormValue("error_description"),
		}

		result, err := s.flow.HandleCallback(r.Context(), params)
		if err != nil {
			log.Err(err).Msg("login failed")
			redirectWithError(w, r, RouteLoginFailed, loginFailed)
			return
		}

		s.SetLoginSessionCookies(w, result.SID, result.CSRF)
		redirectSuccess(w, r, result.RedirectTarget)
	}
}

// LogoutHandler ends the session. CSRF is checked before it runs.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.flow.Logout(r.Context(), sessionID(r)); err != nil {
			log.Err(err).Msg("logout failed")
			writeJSONError(w, "server_error", "logout failed", http.StatusInternalServerError)
			return
		}
		s.ClearLoginSessionCookies(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

// LogoutAllHandler ends every session of the caller's user, this one included
func (s *Server) LogoutAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.flow.LogoutEverywhere(r.Context(), sessionID(r)); err != nil {
			log.Err(err).Msg("logout everywhere failed")
			writeJSONError(w, "server_error", "logout failed", http.StatusInternalServerError)
			return
		}
		s.ClearLoginSessionCookies(w)
		w.WriteHeader(http.StatusNoContent)
	}
}
