package auth

import (
	"encoding/base64"
	"strings"
)

const stateDelimiter = "."

// AuthState is what travels through the authority in the OAuth state
// parameter: the login state id plus an optional post-login redirect. Its wire
// form is "<state id>.<base64url redirect>", or just the state id.
type AuthState struct {
	StateID  string
	Redirect string
}

func (s AuthState) Encode() string {
	if s.Redirect == "" {
		return s.StateID
	}
	return s.StateID + stateDelimiter + base64.RawURLEncoding.EncodeToString([]byte(s.Redirect))
}

// ParseAuthState splits on the first delimiter. A redirect that does not
// decode is dropped rather than failing the login.
func ParseAuthState(raw string) AuthState {
	stateID, encoded, found := strings.Cut(raw, stateDelimiter)
	st := AuthState{StateID: stateID}
	if !found || encoded == "" {
		return st
	}
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return st
	}
	st.Redirect = string(decoded)
	return st
}
