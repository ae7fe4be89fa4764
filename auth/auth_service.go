// Package auth orchestrates the browser login: it carries the post-login
// redirect through the authority, reconciles the authority identity with the
// local user directory and projects sessions for the rest of the storefront.
package auth

import (
	"context"
	"fmt"

	apperrors "github.com/jrsteele09/storefront-auth/internal/errors"
	"github.com/jrsteele09/storefront-auth/internal/logger"
	"github.com/jrsteele09/storefront-auth/sessions"
	"github.com/jrsteele09/storefront-auth/tenants"
	"github.com/jrsteele09/storefront-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SessionService is the part of the session service the flow drives
type SessionService interface {
	CreateLoginState(ctx context.Context) (*sessions.LoginChallenge, error)
	AuthorizeURL(state string, challenge *sessions.LoginChallenge) string
	CompleteLogin(ctx context.Context, code, state string) (*sessions.LoginResult, error)
	GetSession(ctx context.Context, sid string) (*sessions.SessionRecord, error)
	GetAccessToken(ctx context.Context, sid string) (string, bool)
	SignAPIToken(sub, tenantID string, roles []string) (string, error)
	Logout(ctx context.Context, sid string) error
	LogoutAll(ctx context.Context, sub string) (int, error)
}

// Repos holds the directory dependencies of the Flow
type Repos struct {
	Users   users.Directory
	Tenants tenants.Repo
}

// CallbackParams are the query parameters the authority redirects back with
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackResult is a completed login
type CallbackResult struct {
	SID            string
	CSRF           string
	RedirectTarget string
	Profile        sessions.Profile
	User           *users.User // Nil when the directory could not be reconciled
}

// Flow is the login orchestrator in front of the session service
type Flow struct {
	sessions  SessionService
	repos     Repos
	redirects *RedirectPolicy
}

func NewFlow(sessionService SessionService, repos Repos, redirects *RedirectPolicy) *Flow {
	if redirects == nil {
		redirects = NewRedirectPolicy(nil, nil)
	}
	return &Flow{
		sessions:  sessionService,
		repos:     repos,
		redirects: redirects,
	}
}

// BuildAuthorizeURL starts a login. redirect is the optional post-login target,
// already decoded from the login request's query; it rides along in the state
// parameter.
func (f *Flow) BuildAuthorizeURL(ctx context.Context, redirect string) (string, error) {
	if redirect != "" && !f.redirects.Allowed(redirect) {
		// Checked again on the way back, this only avoids carrying it
		logger.Security(logger.EventRedirectRejected).Str("target", redirect).Msg("unsafe redirect target dropped at login")
		redirect = ""
	}

	challenge, err := f.sessions.CreateLoginState(ctx)
	if err != nil {
		return "", errors.Wrap(err, "[Flow.BuildAuthorizeURL]")
	}
	state := AuthState{StateID: challenge.State, Redirect: redirect}
	return f.sessions.AuthorizeURL(state.Encode(), challenge), nil
}

// HandleCallback completes the login the authority redirected back with.
// Directory reconciliation failures do not fail the login.
func (f *Flow) HandleCallback(ctx context.Context, params CallbackParams) (*CallbackResult, error) {
	if params.Error != "" {
		log.Warn().Str("error", params.Error).Str("description", params.ErrorDescription).Msg("authority rejected login")
		return nil, fmt.Errorf("[Flow.HandleCallback] %w: %w", ErrAuthorityDenied, apperrors.ErrExchange)
	}
	if params.Code == "" {
		return nil, errors.Wrap(apperrors.ErrExchange, "[Flow.HandleCallback] missing code")
	}

	state := ParseAuthState(params.State)
	if state.StateID == "" {
		return nil, apperrors.ErrInvalidState
	}

	login, err := f.sessions.CompleteLogin(ctx, params.Code, state.StateID)
	if err != nil {
		return nil, errors.Wrap(err, "[Flow.HandleCallback]")
	}

	result := &CallbackResult{
		SID:            login.SID,
		CSRF:           login.CSRF,
		RedirectTarget: f.redirects.Sanitize(state.Redirect),
		Profile:        login.Profile,
	}

	user, err := f.Reconcile(ctx, login.Profile)
	if err != nil {
		log.Warn().Err(err).Str("sub", login.Profile.Sub).Msg("user directory reconciliation failed, continuing with session only")
	} else {
		result.User = user
	}
	return result, nil
}

// Reconcile finds the local user for the authority identity: by subject, then
// by email (linking the subject), else provisions a new user. Directory
// failures match ErrDirectoryUnavailable.
func (f *Flow) Reconcile(ctx context.Context, profile sessions.Profile) (*users.User, error) {
	user, err := f.repos.Users.GetBySubject(ctx, profile.Sub)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, directoryUnavailable("lookup by subject", err)
	}

	if profile.Email != "" {
		user, err = f.repos.Users.GetByEmail(ctx, profile.Email)
		switch {
		case err == nil:
			if err := f.repos.Users.LinkSubject(ctx, user.ID, profile.Sub); err != nil {
				return nil, directoryUnavailable("link subject", err)
			}
			user.Subject = profile.Sub
			log.Info().Str("user_id", user.ID).Str("sub", profile.Sub).Msg("linked authority subject to existing user")
			return user, nil
		case !errors.Is(err, apperrors.ErrNotFound):
			return nil, directoryUnavailable("lookup by email", err)
		}
	}

	user = &users.User{
		Subject:  profile.Sub,
		Email:    profile.Email,
		FullName: profile.FullName,
	}
	if err := f.repos.Users.Create(ctx, user); err != nil {
		return nil, directoryUnavailable("provision user", err)
	}
	log.Info().Str("user_id", user.ID).Str("sub", profile.Sub).Msg("provisioned user")
	return user, nil
}

func directoryUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrDirectoryUnavailable, err)
}

// SessionInfo projects the session for sid. Absent or expired sessions are
// logged out; directory failures degrade to session-only.
func (f *Flow) SessionInfo(ctx context.Context, sid string) *SessionInfo {
	if sid == "" {
		return loggedOut()
	}
	rec, err := f.sessions.GetSession(ctx, sid)
	if err != nil {
		log.Err(err).Msg("failed to load session")
		return loggedOut()
	}
	if rec == nil {
		return loggedOut()
	}

	info := &SessionInfo{
		Status:    StatusSessionOnly,
		Sub:       rec.Sub,
		User:      &UserIdentity{Email: rec.Email, FullName: rec.FullName},
		TenantIDs: []string{},
		Roles:     rec.Roles,
	}

	user, err := f.repos.Users.GetBySubject(ctx, rec.Sub)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Warn().Err(directoryUnavailable("lookup by subject", err)).Str("sub", rec.Sub).Msg("user directory unavailable")
		}
		return info
	}
	info.User.ID = user.ID
	if user.Email != "" {
		info.User.Email = user.Email
	}
	if name := user.DisplayName(); name != "" {
		info.User.FullName = name
	}

	tenantIDs, err := f.activeTenants(ctx, user)
	if err != nil {
		log.Warn().Err(err).Str("sub", rec.Sub).Msg("tenant lookup failed")
		return info
	}
	info.TenantIDs = tenantIDs
	info.Status = StatusEnriched
	return info
}

// activeTenants filters the user's active memberships down to enabled tenants
func (f *Flow) activeTenants(ctx context.Context, user *users.User) ([]string, error) {
	ids := []string{}
	for _, id := range user.ActiveTenantIDs() {
		tenant, err := f.repos.Tenants.Get(ctx, id)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, directoryUnavailable("tenant "+id, err)
		}
		if !tenant.Disabled {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ServiceToken mints an internal service token for the session, scoped to
// tenantID when given. The session must still hold usable authority tokens
// and the user must be an active member of the tenant.
func (f *Flow) ServiceToken(ctx context.Context, sid, tenantID string) (string, error) {
	if _, ok := f.sessions.GetAccessToken(ctx, sid); !ok {
		return "", ErrNotAuthenticated
	}
	info := f.SessionInfo(ctx, sid)
	if !info.LoggedIn() {
		return "", ErrNotAuthenticated
	}
	if tenantID != "" && !info.HasTenant(tenantID) {
		return "", ErrTenantForbidden
	}
	return f.sessions.SignAPIToken(info.Sub, tenantID, info.Roles)
}

// Logout ends the session, if there is one
func (f *Flow) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return errors.Wrap(f.sessions.Logout(ctx, sid), "[Flow.Logout]")
}

// LogoutEverywhere ends every session belonging to the subject of sid. An
// absent or expired session ends nothing.
func (f *Flow) LogoutEverywhere(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	rec, err := f.sessions.GetSession(ctx, sid)
	if err != nil {
		return errors.Wrap(err, "[Flow.LogoutEverywhere]")
	}
	if rec == nil {
		return nil
	}
	ended, err := f.sessions.LogoutAll(ctx, rec.Sub)
	if err != nil {
		return errors.Wrap(err, "[Flow.LogoutEverywhere]")
	}
	log.Info().Str("sub", rec.Sub).Int("sessions", ended).Msg("logged out everywhere")
	return nil
}
