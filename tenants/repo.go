package tenants

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/jrsteele09/storefront-auth/internal/errors"
	"github.com/jrsteele09/storefront-auth/kvstore"
)

const (
	tenantPrefix = "tenant#"
	domainIndex  = "tenant_domain"
)

type Repo interface {
	Upsert(ctx context.Context, tenant *Tenant) error
	Get(ctx context.Context, tenantID string) (*Tenant, error)
	GetByDomain(ctx context.Context, domain string) (*Tenant, error)
}

var _ Repo = (*KVRepo)(nil)

// KVRepo keeps tenants in a kv store, indexed by domain
type KVRepo struct {
	store kvstore.Store
}

func NewKVRepo(store kvstore.Store) *KVRepo {
	return &KVRepo{store: store}
}

func (r *KVRepo) Upsert(ctx context.Context, tenant *Tenant) error {
	if tenant.ID == "" {
		return fmt.Errorf("[tenants.Upsert] tenant id is required")
	}
	data, err := json.Marshal(tenant)
	if err != nil {
		return fmt.Errorf("[tenants.Upsert] encode: %w", err)
	}
	item := &kvstore.Item{Key: tenantPrefix + tenant.ID, Value: data}
	if domain := strings.ToLower(tenant.Domain); domain != "" {
		item.Indexes = map[string]string{domainIndex: domain}
	}
	return r.store.Put(ctx, item)
}

func (r *KVRepo) Get(ctx context.Context, tenantID string) (*Tenant, error) {
	item, err := r.store.Get(ctx, tenantPrefix+tenantID)
	if err != nil {
		return nil, err
	}
	return decode(item)
}

func (r *KVRepo) GetByDomain(ctx context.Context, domain string) (*Tenant, error) {
	items, err := r.store.Query(ctx, domainIndex, strings.ToLower(domain))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return decode(items[0])
}

func decode(item *kvstore.Item) (*Tenant, error) {
	var t Tenant
	if err := json.Unmarshal(item.Value, &t); err != nil {
		return nil, fmt.Errorf("decode %s: %w", item.Key, err)
	}
	return &t, nil
}
