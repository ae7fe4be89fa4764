package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

const envelopeKeyLength = 32

type SecurityConfig interface {
	GetEnvelopeKeys() map[string][]byte
	GetEnvelopeActiveKeyID() string
	GetInternalJWTSecret() []byte
	GetInternalJWTIssuer() string
	GetInternalJWTAudience() string
	GetInternalTokenTTL() time.Duration
	GetAllowedRedirectSchemes() []string
	GetAllowedRedirectHosts() []string
}

type Security struct {
	EnvelopeKeys           map[string][]byte
	ActiveKeyID            string
	InternalJWTSecret      []byte
	InternalJWTIssuer      string
	InternalJWTAudience    string
	InternalTokenTTL       time.Duration
	AllowedRedirectSchemes []string
	AllowedRedirectHosts   []string
}

var _ SecurityConfig = Security{}

func loadSecurity() (Security, error) {
	s := Security{
		InternalJWTSecret:      []byte(GetEnv("INTERNAL_JWT_SECRET", "")),
		InternalJWTIssuer:      GetEnv("INTERNAL_JWT_ISSUER", "storefront-session"),
		InternalJWTAudience:    GetEnv("INTERNAL_JWT_AUDIENCE", "storefront-api"),
		AllowedRedirectSchemes: getList("REDIRECT_ALLOWED_SCHEMES", []string{"https"}),
		AllowedRedirectHosts:   getList("REDIRECT_ALLOWED_HOSTS", nil),
	}

	var errs []error
	ttl, err := getDuration("INTERNAL_TOKEN_TTL", time.Minute)
	errs = append(errs, err)
	s.InternalTokenTTL = ttl

	keys, err := ParseEnvelopeKeys(GetEnv("ENVELOPE_KEYS", ""))
	errs = append(errs, err)
	s.EnvelopeKeys = keys

	s.ActiveKeyID = GetEnv("ENVELOPE_ACTIVE_KID", "")
	if s.ActiveKeyID == "" && len(keys) == 1 {
		for kid := range keys {
			s.ActiveKeyID = kid
		}
	}
	if _, ok := keys[s.ActiveKeyID]; !ok && err == nil {
		errs = append(errs, fmt.Errorf("ENVELOPE_ACTIVE_KID %q is not one of ENVELOPE_KEYS", s.ActiveKeyID))
	}

	if len(s.InternalJWTSecret) < 32 {
		errs = append(errs, errors.New("INTERNAL_JWT_SECRET must be at least 32 bytes"))
	}

	return s, errors.Join(errs...)
}

// ParseEnvelopeKeys parses "kid:base64key,kid2:base64key" into a key id map.
// Every key must decode to 32 bytes.
func ParseEnvelopeKeys(raw string) (map[string][]byte, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("ENVELOPE_KEYS is required")
	}
	keys := make(map[string][]byte)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kid, encoded, ok := strings.Cut(entry, ":")
		if !ok || kid == "" || encoded == "" {
			return nil, fmt.Errorf("ENVELOPE_KEYS: malformed entry %q", entry)
		}
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("ENVELOPE_KEYS: key %q: %w", kid, err)
		}
		if len(key) != envelopeKeyLength {
			return nil, fmt.Errorf("ENVELOPE_KEYS: key %q must be %d bytes, got %d", kid, envelopeKeyLength, len(key))
		}
		if _, dup := keys[kid]; dup {
			return nil, fmt.Errorf("ENVELOPE_KEYS: duplicate key id %q", kid)
		}
		keys[kid] = key
	}
	return keys, nil
}

func (s Security) GetEnvelopeKeys() map[string][]byte {
	return s.EnvelopeKeys
}

func (s Security) GetEnvelopeActiveKeyID() string {
	return s.ActiveKeyID
}

func (s Security) GetInternalJWTSecret() []byte {
	return s.InternalJWTSecret
}

func (s Security) GetInternalJWTIssuer() string {
	return s.InternalJWTIssuer
}

func (s Security) GetInternalJWTAudience() string {
	return s.InternalJWTAudience
}

func (s Security) GetInternalTokenTTL() time.Duration {
	return s.InternalTokenTTL
}

func (s Security) GetAllowedRedirectSchemes() []string {
	return s.AllowedRedirectSchemes
}

func (s Security) GetAllowedRedirectHosts() []string {
	return s.AllowedRedirectHosts
}
