package auth

// SessionStatus says how much of the session projection could be resolved
type SessionStatus string

const (
	StatusLoggedOut   SessionStatus = "logged_out"
	StatusSessionOnly SessionStatus = "session_only" // Logged in, directory unavailable or user unknown
	StatusEnriched    SessionStatus = "enriched"     // Logged in with directory user and tenants
)

// UserIdentity is the user as the rest of the storefront sees them
type UserIdentity struct {
	ID       string `json:"id,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// SessionInfo is the per-request read projection of a session. It is never cached.
type SessionInfo struct {
	Status    SessionStatus `json:"status"`
	Sub       string        `json:"sub,omitempty"`
	User      *UserIdentity `json:"user,omitempty"`
	TenantIDs []string      `json:"tenant_ids,omitempty"`
	Roles     []string      `json:"roles,omitempty"`
}

func (i *SessionInfo) LoggedIn() bool {
	return i != nil && i.Status != StatusLoggedOut
}

// HasTenant reports whether the user has an active membership in tenantID
func (i *SessionInfo) HasTenant(tenantID string) bool {
	if i == nil {
		return false
	}
	for _, id := range i.TenantIDs {
		if id == tenantID {
			return true
		}
	}
	return false
}

func loggedOut() *SessionInfo {
	return &SessionInfo{Status: StatusLoggedOut}
}
