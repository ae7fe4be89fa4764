package sessions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/storefront-auth/authority"
	"github.com/jrsteele09/storefront-auth/envelope"
	apperrors "github.com/jrsteele09/storefront-auth/internal/errors"
	"github.com/jrsteele09/storefront-auth/internal/logger"
	"github.com/jrsteele09/storefront-auth/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Defaults for the session lifecycle
const (
	DefaultSessionTTL    = 24 * time.Hour
	DefaultLoginStateTTL = 10 * time.Minute
	DefaultRefreshMargin = 60 * time.Second
	DefaultWriteDebounce = 60 * time.Second

	// Access token lifetime assumed when the authority does not return expires_in
	defaultTokenLifetime = 5 * time.Minute
)

// Authority is the identity provider as the session service uses it
type Authority interface {
	AuthCodeURL(state, nonce, codeChallenge string) string
	Exchange(ctx context.Context, code, nonce, codeVerifier string) (*authority.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*authority.TokenResponse, error)
}

// ServiceTokenMinter mints short lived internal service tokens
type ServiceTokenMinter interface {
	CreateServiceToken(sub, tenantID string, roles []string) (string, error)
}

// Service is the only writer of login states and session records
type Service struct {
	repos         Repos
	authority     Authority
	keyring       *envelope.Keyring
	minter        ServiceTokenMinter
	sessionTTL    time.Duration
	loginStateTTL time.Duration
	refreshMargin time.Duration
	writeDebounce time.Duration
	nowTime       func() time.Time
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithSessionTTL sets the sliding session lifetime
func WithSessionTTL(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

// WithLoginStateTTL sets how long a started login may take
func WithLoginStateTTL(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.loginStateTTL = d
		}
	}
}

// WithRefreshMargin sets the remaining access token lifetime below which it is refreshed
func WithRefreshMargin(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d >= 0 {
			s.refreshMargin = d
		}
	}
}

// WithWriteDebounce sets the minimum interval between routine TTL extension writes
func WithWriteDebounce(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d >= 0 {
			s.writeDebounce = d
		}
	}
}

// NewService wires the session service. Configuration is fixed for the
// lifetime of the service.
func NewService(repos Repos, idp Authority, keyring *envelope.Keyring, minter ServiceTokenMinter, options ...ServiceOption) *Service {
	s := &Service{
		repos:         repos,
		authority:     idp,
		keyring:       keyring,
		minter:        minter,
		sessionTTL:    DefaultSessionTTL,
		loginStateTTL: DefaultLoginStateTTL,
		refreshMargin: DefaultRefreshMargin,
		writeDebounce: DefaultWriteDebounce,
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Service) now() int64 {
	return s.nowTime().Unix()
}

// CreateLoginState persists a fresh single-use login state
func (s *Service) CreateLoginState(ctx context.Context) (*LoginChallenge, error) {
	state, err := token.RandomID(token.StateLength)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.CreateLoginState] state")
	}
	nonce, err := token.RandomID(token.NonceLength)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.CreateLoginState] nonce")
	}
	verifier, err := token.RandomID(token.CodeVerifierLength)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.CreateLoginState] code verifier")
	}

	now := s.now()
	ls := &LoginState{
		State:        state,
		Nonce:        nonce,
		CodeVerifier: verifier,
		CreatedAt:    now,
		TTL:          now + int64(s.loginStateTTL/time.Second),
	}
	if err := s.repos.States.Put(ctx, ls); err != nil {
		return nil, errors.Wrap(err, "[Service.CreateLoginState] store")
	}

	return &LoginChallenge{
		State:         state,
		Nonce:         nonce,
		CodeVerifier:  verifier,
		CodeChallenge: token.CodeChallenge(verifier),
	}, nil
}

// AuthorizeURL builds the authority redirect. state may carry more than the
// bare login state id.
func (s *Service) AuthorizeURL(state string, challenge *LoginChallenge) string {
	return s.authority.AuthCodeURL(state, challenge.Nonce, challenge.CodeChallenge)
}

// CompleteLogin consumes the login state, exchanges the code and creates the
// session. An unknown, expired or replayed state fails with ErrInvalidState.
func (s *Service) CompleteLogin(ctx context.Context, code, state string) (*LoginResult, error) {
	ls, err := s.repos.States.Get(ctx, state)
	if errors.Is(err, apperrors.ErrNotFound) {
		logger.Security(logger.EventInvalidLoginState).Msg("login state unknown, expired or already used")
		return nil, apperrors.ErrInvalidState
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Service.CompleteLogin] load state")
	}

	// Consuming the state is what makes it single use
	if err := s.repos.States.Delete(ctx, state); err != nil {
		return nil, errors.Wrap(err, "[Service.CompleteLogin] consume state")
	}

	resp, err := s.authority.Exchange(ctx, code, ls.Nonce, ls.CodeVerifier)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.CompleteLogin] exchange")
	}
	if resp.Claims == nil || resp.Claims.Subject == "" {
		return nil, errors.Wrap(apperrors.ErrExchange, "[Service.CompleteLogin] no subject")
	}

	now := s.now()
	sealed, err := s.seal(&TokenBundle{
		AccessToken:  resp.AccessToken,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    s.expiresAt(now, resp.Expiry),
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Service.CompleteLogin] seal tokens")
	}

	sid, err := token.RandomID(token.SessionIDLength)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.CompleteLogin] session id")
	}
	csrf, err := token.RandomID(token.CSRFTokenLength)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.CompleteLogin] csrf token")
	}

	claims := resp.Claims
	profile := Profile{
		Sub:      claims.Subject,
		Email:    claims.Email,
		Name:     claims.DisplayName(),
		FullName: claims.FullName(),
		Roles:    claims.AllRoles(),
	}
	rec := &SessionRecord{
		SID:       sid,
		Sub:       profile.Sub,
		Email:     profile.Email,
		Name:      profile.Name,
		FullName:  profile.FullName,
		Roles:     profile.Roles,
		CreatedAt: now,
		UpdatedAt: now,
		TTL:       now + int64(s.sessionTTL/time.Second),
		TokensEnc: sealed,
	}
	if err := s.repos.Sessions.Put(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "[Service.CompleteLogin] store session")
	}

	log.Info().Str("sub", profile.Sub).Msg("session established")
	return &LoginResult{SID: sid, CSRF: csrf, Profile: profile}, nil
}

// GetSession returns the live session or nil when it is absent or expired
func (s *Service) GetSession(ctx context.Context, sid string) (*SessionRecord, error) {
	if sid == "" {
		return nil, nil
	}
	rec, err := s.repos.Sessions.Get(ctx, sid)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Service.GetSession]")
	}
	return rec, nil
}

// GetAccessToken returns a usable authority access token for the session,
// refreshing it once when it is close to expiry. Any failure, including a
// tampered envelope or a rejected refresh, is reported as not ok.
func (s *Service) GetAccessToken(ctx context.Context, sid string) (string, bool) {
	rec, err := s.GetSession(ctx, sid)
	if err != nil {
		log.Err(err).Msg("failed to load session")
		return "", false
	}
	if rec == nil {
		return "", false
	}

	bundle, err := s.open(rec.TokensEnc)
	if err != nil {
		logger.Security(logger.EventIntegrityFailure).Err(err).Str("sub", rec.Sub).Msg("session tokens unusable")
		return "", false
	}

	now := s.now()
	if bundle.ExpiresAt-now < int64(s.refreshMargin/time.Second) {
		bundle, err = s.refresh(ctx, rec, bundle)
		if err != nil {
			logger.Security(logger.EventRefreshFailed).Err(err).Str("sub", rec.Sub).Msg("access token refresh failed")
			return "", false
		}
	}

	if _, err := s.ExtendSessionTTLIfNeeded(ctx, rec, bundle.ExpiresAt); err != nil {
		log.Err(err).Str("sub", rec.Sub).Msg("failed to extend session")
	}
	return bundle.AccessToken, true
}

func (s *Service) refresh(ctx context.Context, rec *SessionRecord, bundle *TokenBundle) (*TokenBundle, error) {
	resp, err := s.authority.Refresh(ctx, bundle.RefreshToken)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next := &TokenBundle{
		AccessToken:  resp.AccessToken,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    s.expiresAt(now, resp.Expiry),
	}
	if next.IDToken == "" {
		next.IDToken = bundle.IDToken
	}
	if next.RefreshToken == "" {
		next.RefreshToken = bundle.RefreshToken
	}

	sealed, err := s.seal(next)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.refresh] seal tokens")
	}
	// The authority already issued the new token, a lost write only costs another refresh
	if err := s.repos.Sessions.UpdateTokens(ctx, rec.SID, sealed, now); err != nil {
		log.Err(err).Str("sub", rec.Sub).Msg("failed to store refreshed tokens")
	} else {
		rec.TokensEnc = sealed
		rec.UpdatedAt = now
	}
	return next, nil
}

// ExtendSessionTTLIfNeeded slides the session expiry forward when the session
// would end before the access token does, or when the last write is older than
// the debounce interval. It reports whether it wrote. The expiry never moves
// backwards.
func (s *Service) ExtendSessionTTLIfNeeded(ctx context.Context, rec *SessionRecord, accessTokenExpiry int64) (bool, error) {
	if rec == nil {
		return false, nil
	}
	now := s.now()
	shortfall := rec.TTL-now < accessTokenExpiry-now
	stale := now-rec.UpdatedAt > int64(s.writeDebounce/time.Second)
	if !shortfall && !stale {
		return false, nil
	}

	ttl := max(rec.TTL, now+int64(s.sessionTTL/time.Second), accessTokenExpiry)
	err := s.repos.Sessions.ExtendTTL(ctx, rec.SID, ttl, now)
	if errors.Is(err, apperrors.ErrConditionFailed) {
		// A concurrent request extended further, or the session ended
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Service.ExtendSessionTTLIfNeeded]")
	}
	rec.TTL = ttl
	rec.UpdatedAt = now
	return true, nil
}

// SignAPIToken mints an internal service token for calls to downstream APIs
func (s *Service) SignAPIToken(sub, tenantID string, roles []string) (string, error) {
	raw, err := s.minter.CreateServiceToken(sub, tenantID, roles)
	if err != nil {
		return "", errors.Wrap(err, "[Service.SignAPIToken]")
	}
	return raw, nil
}

// Logout ends the session. Ending an absent session is not an error.
func (s *Service) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	if err := s.repos.Sessions.Delete(ctx, sid); err != nil {
		return errors.Wrap(err, "[Service.Logout]")
	}
	return nil
}

// LogoutAll ends every session of the subject, on every device
func (s *Service) LogoutAll(ctx context.Context, sub string) (int, error) {
	if sub == "" {
		return 0, nil
	}
	ended, err := s.repos.Sessions.DeleteBySubject(ctx, sub)
	if err != nil {
		return ended, errors.Wrap(err, "[Service.LogoutAll]")
	}
	return ended, nil
}

// OpenTokens decrypts the session's token bundle
func (s *Service) OpenTokens(rec *SessionRecord) (*TokenBundle, error) {
	return s.open(rec.TokensEnc)
}

func (s *Service) expiresAt(now int64, expiry time.Time) int64 {
	if expiry.IsZero() {
		return now + int64(defaultTokenLifetime/time.Second)
	}
	return expiry.Unix()
}

func (s *Service) seal(bundle *TokenBundle) (*envelope.Envelope, error) {
	data, err := json.Marshal(bundle)
	if err != nil {
		return nil, err
	}
	return s.keyring.Seal(data)
}

func (s *Service) open(env *envelope.Envelope) (*TokenBundle, error) {
	data, err := s.keyring.Open(env)
	if err != nil {
		return nil, err
	}
	var bundle TokenBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, errors.Wrap(apperrors.ErrIntegrity, "[Service.open] decode bundle")
	}
	return &bundle, nil
}
