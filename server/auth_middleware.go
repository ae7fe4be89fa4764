package server

import (
	"context"
	"net/http"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySessionID stores the caller's session id
	ContextKeySessionID ContextKey = "sid"
	// ContextKeyTenantID stores the tenant the caller is acting in
	ContextKeyTenantID ContextKey = "tenant_id"
)

// RequireSession rejects requests without a session cookie and carries the
// session id and requested tenant on the request context. Whether the session
// is still live is decided when a token is needed.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sid := sessionID(r)
			if sid == "" {
				writeJSONError(w, "unauthorized", "login required", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySessionID, sid)
			ctx = context.WithValue(ctx, ContextKeyTenantID, r.Header.Get(HeaderTenantID))
			next(w, r.WithContext(ctx))
		}
	}
}

func sessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(ContextKeySessionID).(string)
	return sid
}

func tenantIDFromContext(ctx context.Context) string {
	tenantID, _ := ctx.Value(ContextKeyTenantID).(string)
	return tenantID
}
