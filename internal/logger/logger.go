package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. DEV gets a human readable console
// writer, every other environment logs JSON to stdout.
func Setup(level, env string) {
	SetupWriter(level, env, os.Stdout)
}

func SetupWriter(level, env string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(env, "DEV") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// Security event names, logged at warn level under the "event" field
const (
	EventRedirectRejected   = "redirect_rejected"
	EventIntegrityFailure   = "envelope_integrity_failure"
	EventInvalidLoginState  = "invalid_login_state"
	EventCsrfRejected       = "csrf_rejected"
	EventRefreshFailed      = "refresh_failed"
	EventServiceTokenFailed = "service_token_rejected"
)

// Security starts a warn level entry tagged with a security event name
func Security(event string) *zerolog.Event {
	return log.Warn().Str("event", event)
}
