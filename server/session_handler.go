package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/storefront-auth/csrf"
	"github.com/rs/zerolog/log"
)

// SessionHandler returns the session projection. A logged in browser that lost
// its CSRF cookie gets a new one.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := s.flow.SessionInfo(r.Context(), sessionID(r))

		if info.LoggedIn() {
			if _, err := r.Cookie(csrf.CookieName); err != nil {
				token, err := csrf.NewToken()
				if err != nil {
					log.Err(err).Msg("failed to issue csrf token")
				} else {
					s.SetCSRFCookie(w, token)
				}
			}
		}

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, info)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to write response")
	}
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
