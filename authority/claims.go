package authority

import (
	"encoding/json"
	"strings"

	"github.com/jrsteele09/storefront-auth/internal/utils"
)

// IDClaims is the decoded subset of ID token claims the storefront uses.
// Identity providers are not bound to any particular claim set, so every
// field except the subject is optional and decodes to its zero value when
// missing or malformed.
type IDClaims struct {
	Subject           string     `json:"sub"`
	Email             string     `json:"email,omitempty"`
	EmailVerified     *bool      `json:"email_verified,omitempty"`
	Name              string     `json:"name,omitempty"`
	GivenName         string     `json:"given_name,omitempty"`
	FamilyName        string     `json:"family_name,omitempty"`
	PreferredUsername string     `json:"preferred_username,omitempty"`
	Nonce             string     `json:"nonce,omitempty"`
	Roles             StringList `json:"roles,omitempty"`
	Groups            StringList `json:"groups,omitempty"`
}

// FullName prefers the name claim and falls back to given + family name
func (c IDClaims) FullName() string {
	if c.Name != "" {
		return c.Name
	}
	return strings.TrimSpace(c.GivenName + " " + c.FamilyName)
}

// DisplayName is a short name for the user, falling back through the usual claims
func (c IDClaims) DisplayName() string {
	switch {
	case c.PreferredUsername != "":
		return c.PreferredUsername
	case c.GivenName != "":
		return c.GivenName
	default:
		return c.FullName()
	}
}

// AllRoles merges the roles and groups claims without duplicates
func (c IDClaims) AllRoles() []string {
	return utils.Unique(c.Roles, c.Groups)
}

// StringList decodes a claim that may be a JSON array of strings, a single
// string, or something else entirely (ignored).
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		*s = utils.ToStringSlice(list)
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*s = StringList{single}
		}
		return nil
	}
	*s = nil
	return nil
}
