package config

import (
	"errors"
	"time"
)

type SessionConfig interface {
	GetSessionTTL() time.Duration
	GetLoginStateTTL() time.Duration
	GetTokenRefreshMargin() time.Duration
	GetSessionWriteDebounce() time.Duration
}

type Session struct {
	SessionTTL    time.Duration
	LoginStateTTL time.Duration
	RefreshMargin time.Duration
	WriteDebounce time.Duration
}

var _ SessionConfig = Session{}

func loadSession() (Session, error) {
	var errs []error
	s := Session{}
	var err error
	s.SessionTTL, err = getDuration("SESSION_TTL", 24*time.Hour)
	errs = append(errs, err)
	s.LoginStateTTL, err = getDuration("LOGIN_STATE_TTL", 10*time.Minute)
	errs = append(errs, err)
	s.RefreshMargin, err = getDuration("TOKEN_REFRESH_MARGIN", time.Minute)
	errs = append(errs, err)
	s.WriteDebounce, err = getDuration("SESSION_WRITE_DEBOUNCE", time.Minute)
	errs = append(errs, err)
	return s, errors.Join(errs...)
}

func (s Session) GetSessionTTL() time.Duration {
	return s.SessionTTL
}

func (s Session) GetLoginStateTTL() time.Duration {
	return s.LoginStateTTL
}

func (s Session) GetTokenRefreshMargin() time.Duration {
	return s.RefreshMargin
}

func (s Session) GetSessionWriteDebounce() time.Duration {
	return s.WriteDebounce
}
