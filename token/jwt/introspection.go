package jwt

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/storefront-auth/token"
)

// ErrReplayed is returned when a service token id is presented twice
var ErrReplayed = errors.New("service token replayed")

// How often Verify sweeps expired ids out of the replay cache
const replayCleanupInterval = time.Minute

// InspectorOption configures an Inspector
type InspectorOption func(*Inspector)

// WithInspectorNowFunc overrides the clock (primarily for testing)
func WithInspectorNowFunc(now func() time.Time) InspectorOption {
	return func(i *Inspector) {
		i.nowFunc = now
	}
}

// WithReplayCache rejects token ids that have already been accepted
func WithReplayCache(cache token.ReplayCache) InspectorOption {
	return func(i *Inspector) {
		i.replay = cache
	}
}

// Inspector verifies internal service tokens on the receiving side using the shared secret
type Inspector struct {
	signer   token.Signer
	issuer   string
	audience string
	replay   token.ReplayCache
	nowFunc  func() time.Time

	cleanupMu   sync.Mutex
	nextCleanup time.Time
}

// NewInspector creates a new service token inspector
func NewInspector(signer token.Signer, issuer, audience string, options ...InspectorOption) *Inspector {
	i := &Inspector{
		signer:   signer,
		issuer:   issuer,
		audience: audience,
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// Verify checks signature, issuer, audience, expiry and token type
func (i *Inspector) Verify(rawToken string) (*ServiceClaims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New("[Inspector.Verify] empty token")
	}

	claims := &ServiceClaims{}
	parsed, err := jwtlib.ParseWithClaims(rawToken, claims, i.signer.GetVerificationKey,
		jwtlib.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithAudience(i.audience),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(i.nowFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("[Inspector.Verify] %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("[Inspector.Verify] token invalid")
	}
	if claims.TokenType != serviceTokenType {
		return nil, fmt.Errorf("[Inspector.Verify] unexpected token type %q", claims.TokenType)
	}

	if i.replay != nil {
		if claims.ID == "" {
			return nil, errors.New("[Inspector.Verify] missing token id")
		}
		i.sweepReplayCache()
		if i.replay.MarkSeen(claims.ID, claims.ExpiresAt.Time) {
			return nil, ErrReplayed
		}
	}
	return claims, nil
}

func (i *Inspector) sweepReplayCache() {
	now := i.nowFunc()
	i.cleanupMu.Lock()
	if now.Before(i.nextCleanup) {
		i.cleanupMu.Unlock()
		return
	}
	i.nextCleanup = now.Add(replayCleanupInterval)
	i.cleanupMu.Unlock()
	i.replay.Cleanup(now)
}
