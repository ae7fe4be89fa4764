// Package kvstore is the generic key-value access pattern the session
// subsystem relies on: single-row get/put, conditional update and lookup by
// secondary index. Items carry an absolute expiry the engine honours for
// physical reclamation; callers must still re-check it on every read.
package kvstore

import (
	"context"

	apperrors "github.com/jrsteele09/storefront-auth/internal/errors"
)

var (
	ErrNotFound        = apperrors.ErrNotFound
	ErrConditionFailed = apperrors.ErrConditionFailed
)

// Item is a single stored row
type Item struct {
	Key     string            `json:"key"`
	Value   []byte            `json:"value"`
	TTL     int64             `json:"ttl"`               // Absolute expiry, epoch seconds. 0 means no expiry
	Indexes map[string]string `json:"indexes,omitempty"` // Secondary index name -> value
}

// Expired reports whether the item is logically gone at now (epoch seconds)
func (i *Item) Expired(now int64) bool {
	return i.TTL != 0 && i.TTL <= now
}

func (i *Item) clone() *Item {
	c := &Item{
		Key:   i.Key,
		Value: append([]byte(nil), i.Value...),
		TTL:   i.TTL,
	}
	if i.Indexes != nil {
		c.Indexes = make(map[string]string, len(i.Indexes))
		for k, v := range i.Indexes {
			c.Indexes[k] = v
		}
	}
	return c
}

// Condition decides whether a conditional update may proceed given the current item
type Condition func(current *Item) bool

// Mutation changes an item in place during a conditional update
type Mutation func(item *Item) error

// Store is the access pattern contract
type Store interface {
	// Get returns the item or ErrNotFound. Physically present but expired items
	// may be returned; callers check Item.Expired.
	Get(ctx context.Context, key string) (*Item, error)

	// Put creates or replaces an item
	Put(ctx context.Context, item *Item) error

	// Update applies mutate to the current item when cond holds. Returns
	// ErrNotFound for a missing item and ErrConditionFailed when cond rejects it
	// or a concurrent writer won.
	Update(ctx context.Context, key string, cond Condition, mutate Mutation) error

	// Query returns the items whose secondary index equals value
	Query(ctx context.Context, index, value string) ([]*Item, error)
}
