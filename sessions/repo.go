package sessions

import (
	"context"

	"github.com/jrsteele09/storefront-auth/envelope"
)

// StateRepo stores login states. Get returns ErrNotFound for absent or expired states.
type StateRepo interface {
	Put(ctx context.Context, state *LoginState) error
	Get(ctx context.Context, state string) (*LoginState, error)
	Delete(ctx context.Context, state string) error
}

// Repo stores session records. Get returns ErrNotFound for absent or expired
// sessions; Delete is idempotent.
type Repo interface {
	Put(ctx context.Context, session *SessionRecord) error
	Get(ctx context.Context, sid string) (*SessionRecord, error)
	Delete(ctx context.Context, sid string) error

	// DeleteBySubject ends every live session of sub and reports how many it ended
	DeleteBySubject(ctx context.Context, sub string) (int, error)

	// ExtendTTL moves the expiry to ttl. It fails with ErrConditionFailed when
	// the stored ttl is already later, so the expiry never moves backwards.
	ExtendTTL(ctx context.Context, sid string, ttl, updatedAt int64) error

	// UpdateTokens replaces the sealed token bundle of a live session
	UpdateTokens(ctx context.Context, sid string, tokens *envelope.Envelope, updatedAt int64) error
}

// Repos holds the repository dependencies of the Service
type Repos struct {
	States   StateRepo
	Sessions Repo
}
