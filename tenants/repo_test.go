package tenants_test

import (
	"context"
	"testing"

	apperrors "github.com/jrsteele09/storefront-auth/internal/errors"
	"github.com/jrsteele09/storefront-auth/kvstore"
	"github.com/jrsteele09/storefront-auth/tenants"
	"github.com/stretchr/testify/require"
)

func TestKVRepo(t *testing.T) {
	ctx := context.Background()
	repo := tenants.NewKVRepo(kvstore.NewMemoryStore())

	require.Error(t, repo.Upsert(ctx, &tenants.Tenant{Name: "no id"}))
	require.NoError(t, repo.Upsert(ctx, &tenants.Tenant{ID: "tenant-a", Name: "Studio A", Domain: "Studio-A.example.com"}))

	got, err := repo.Get(ctx, "tenant-a")
	require.NoError(t, err)
	require.Equal(t, "Studio A", got.Name)

	byDomain, err := repo.GetByDomain(ctx, "studio-a.example.com")
	require.NoError(t, err)
	require.Equal(t, "tenant-a", byDomain.ID)

	_, err = repo.Get(ctx, "tenant-b")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = repo.GetByDomain(ctx, "unknown.example.com")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
