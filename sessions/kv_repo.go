package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/storefront-auth/envelope"
	apperrors "github.com/jrsteele09/storefront-auth/internal/errors"
	"github.com/jrsteele09/storefront-auth/kvstore"
)

const (
	statePrefix   = "state#"
	sessionPrefix = "session#"

	// SubjectIndex finds the sessions of an authority subject
	SubjectIndex = "session_sub"
)

// RepoOption configures the kv backed repositories
type RepoOption func(*kvRepo)

// WithRepoNowFunc sets the clock used for logical expiry checks
func WithRepoNowFunc(now func() time.Time) RepoOption {
	return func(r *kvRepo) {
		r.now = now
	}
}

type kvRepo struct {
	store kvstore.Store
	now   func() time.Time
}

func newKVRepo(store kvstore.Store, options ...RepoOption) kvRepo {
	r := kvRepo{store: store, now: time.Now}
	for _, opt := range options {
		opt(&r)
	}
	return r
}

// get loads a live item and decodes it into v
func (r kvRepo) get(ctx context.Context, key string, v any) (*kvstore.Item, error) {
	item, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if item.Expired(r.now().Unix()) {
		return nil, apperrors.ErrNotFound
	}
	if err := json.Unmarshal(item.Value, v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return item, nil
}

// expire is a logical delete: the ttl is set to now and the engine reclaims
// the row later. Deleting an absent key is not an error.
func (r kvRepo) expire(ctx context.Context, key string) error {
	now := r.now().Unix()
	err := r.store.Update(ctx, key,
		func(current *kvstore.Item) bool { return !current.Expired(now) },
		func(item *kvstore.Item) error {
			item.TTL = now
			return nil
		})
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrConditionFailed) {
		return nil
	}
	return err
}

type stateRepo struct {
	kvRepo
}

// NewStateRepo stores login states in a kv store
func NewStateRepo(store kvstore.Store, options ...RepoOption) StateRepo {
	return &stateRepo{kvRepo: newKVRepo(store, options...)}
}

func (r *stateRepo) Put(ctx context.Context, state *LoginState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("[stateRepo.Put] encode: %w", err)
	}
	return r.store.Put(ctx, &kvstore.Item{Key: statePrefix + state.State, Value: data, TTL: state.TTL})
}

func (r *stateRepo) Get(ctx context.Context, state string) (*LoginState, error) {
	var ls LoginState
	if _, err := r.get(ctx, statePrefix+state, &ls); err != nil {
		return nil, err
	}
	return &ls, nil
}

func (r *stateRepo) Delete(ctx context.Context, state string) error {
	return r.expire(ctx, statePrefix+state)
}

type sessionRepo struct {
	kvRepo
}

// NewRepo stores session records in a kv store, indexed by subject
func NewRepo(store kvstore.Store, options ...RepoOption) Repo {
	return &sessionRepo{kvRepo: newKVRepo(store, options...)}
}

func (r *sessionRepo) Put(ctx context.Context, session *SessionRecord) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("[sessionRepo.Put] encode: %w", err)
	}
	return r.store.Put(ctx, &kvstore.Item{
		Key:     sessionPrefix + session.SID,
		Value:   data,
		TTL:     session.TTL,
		Indexes: map[string]string{SubjectIndex: session.Sub},
	})
}

func (r *sessionRepo) Get(ctx context.Context, sid string) (*SessionRecord, error) {
	var rec SessionRecord
	item, err := r.get(ctx, sessionPrefix+sid, &rec)
	if err != nil {
		return nil, err
	}
	// The item ttl is authoritative
	rec.TTL = item.TTL
	return &rec, nil
}

func (r *sessionRepo) Delete(ctx context.Context, sid string) error {
	return r.expire(ctx, sessionPrefix+sid)
}

func (r *sessionRepo) DeleteBySubject(ctx context.Context, sub string) (int, error) {
	items, err := r.store.Query(ctx, SubjectIndex, sub)
	if err != nil {
		return 0, err
	}
	now := r.now().Unix()
	ended := 0
	for _, item := range items {
		if item.Expired(now) {
			continue
		}
		if err := r.expire(ctx, item.Key); err != nil {
			return ended, err
		}
		ended++
	}
	return ended, nil
}

func (r *sessionRepo) ExtendTTL(ctx context.Context, sid string, ttl, updatedAt int64) error {
	now := r.now().Unix()
	return r.store.Update(ctx, sessionPrefix+sid,
		func(current *kvstore.Item) bool {
			return !current.Expired(now) && ttl >= current.TTL
		},
		func(item *kvstore.Item) error {
			return r.rewrite(item, func(rec *SessionRecord) {
				rec.TTL = ttl
				rec.UpdatedAt = updatedAt
				item.TTL = ttl
			})
		})
}

func (r *sessionRepo) UpdateTokens(ctx context.Context, sid string, tokens *envelope.Envelope, updatedAt int64) error {
	now := r.now().Unix()
	return r.store.Update(ctx, sessionPrefix+sid,
		func(current *kvstore.Item) bool { return !current.Expired(now) },
		func(item *kvstore.Item) error {
			return r.rewrite(item, func(rec *SessionRecord) {
				rec.TokensEnc = tokens
				rec.UpdatedAt = updatedAt
			})
		})
}

func (r *sessionRepo) rewrite(item *kvstore.Item, change func(rec *SessionRecord)) error {
	var rec SessionRecord
	if err := json.Unmarshal(item.Value, &rec); err != nil {
		return fmt.Errorf("decode %s: %w", item.Key, err)
	}
	change(&rec)
	data, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", item.Key, err)
	}
	item.Value = data
	return nil
}
