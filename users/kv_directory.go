package users

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/storefront-auth/internal/errors"
	"github.com/jrsteele09/storefront-auth/kvstore"
)

const (
	userPrefix   = "user#"
	subjectIndex = "user_sub"
	emailIndex   = "user_email"
)

var _ Directory = (*KVDirectory)(nil)

// KVDirectory keeps users in a kv store, indexed by subject and email
type KVDirectory struct {
	store   kvstore.Store
	nowTime func() time.Time
}

// NewKVDirectory creates a directory over store
func NewKVDirectory(store kvstore.Store) *KVDirectory {
	return &KVDirectory{store: store, nowTime: time.Now}
}

func (d *KVDirectory) GetByID(ctx context.Context, id string) (*User, error) {
	item, err := d.store.Get(ctx, userPrefix+id)
	if err != nil {
		return nil, err
	}
	return decodeUser(item)
}

func (d *KVDirectory) GetBySubject(ctx context.Context, subject string) (*User, error) {
	return d.queryOne(ctx, subjectIndex, subject)
}

func (d *KVDirectory) GetByEmail(ctx context.Context, email string) (*User, error) {
	return d.queryOne(ctx, emailIndex, NormalizeEmail(email))
}

func (d *KVDirectory) queryOne(ctx context.Context, index, value string) (*User, error) {
	if value == "" {
		return nil, apperrors.ErrNotFound
	}
	items, err := d.store.Query(ctx, index, value)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return decodeUser(items[0])
}

func (d *KVDirectory) LinkSubject(ctx context.Context, userID, subject string) error {
	return d.store.Update(ctx, userPrefix+userID,
		func(current *kvstore.Item) bool {
			linked := current.Indexes[subjectIndex]
			return linked == "" || linked == subject
		},
		func(item *kvstore.Item) error {
			return rewriteUser(item, func(u *User) {
				u.Subject = subject
				u.LastLogin = d.nowTime()
			})
		})
}

func (d *KVDirectory) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = d.nowTime()
	}
	item, err := encodeUser(user)
	if err != nil {
		return err
	}
	return d.store.Put(ctx, item)
}

func (d *KVDirectory) SetMembership(ctx context.Context, userID string, membership TenantMembership) error {
	return d.store.Update(ctx, userPrefix+userID, nil, func(item *kvstore.Item) error {
		return rewriteUser(item, func(u *User) {
			if existing := u.GetTenantMembership(membership.TenantID); existing != nil {
				*existing = membership
				return
			}
			u.Tenants = append(u.Tenants, membership)
		})
	})
}

func encodeUser(u *User) (*kvstore.Item, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode user %s: %w", u.ID, err)
	}
	item := &kvstore.Item{Key: userPrefix + u.ID, Value: data, Indexes: map[string]string{}}
	if u.Subject != "" {
		item.Indexes[subjectIndex] = u.Subject
	}
	if email := NormalizeEmail(u.Email); email != "" {
		item.Indexes[emailIndex] = email
	}
	return item, nil
}

func decodeUser(item *kvstore.Item) (*User, error) {
	var u User
	if err := json.Unmarshal(item.Value, &u); err != nil {
		return nil, fmt.Errorf("decode %s: %w", item.Key, err)
	}
	return &u, nil
}

// rewriteUser applies change to the stored user and refreshes its indexes
func rewriteUser(item *kvstore.Item, change func(u *User)) error {
	u, err := decodeUser(item)
	if err != nil {
		return err
	}
	change(u)
	next, err := encodeUser(u)
	if err != nil {
		return err
	}
	item.Value = next.Value
	item.Indexes = next.Indexes
	return nil
}
