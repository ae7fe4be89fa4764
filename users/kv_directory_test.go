package users_test

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/storefront-auth/internal/errors"
	"github.com/jrsteele09/storefront-auth/kvstore"
	"github.com/jrsteele09/storefront-auth/users"
	"github.com/stretchr/testify/require"
)

func TestKVDirectory_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	dir := users.NewKVDirectory(kvstore.NewMemoryStore())

	u := &users.User{Email: "Jane@Example.com ", Subject: "auth0|1", FullName: "Jane Doe"}
	require.NoError(t, dir.Create(ctx, u))
	require.NotEmpty(t, u.ID)
	require.False(t, u.DateJoined.IsZero())

	byID, err := dir.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", byID.DisplayName())

	bySub, err := dir.GetBySubject(ctx, "auth0|1")
	require.NoError(t, err)
	require.Equal(t, u.ID, bySub.ID)

	byEmail, err := dir.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	_, err = dir.GetBySubject(ctx, "auth0|unknown")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = dir.GetByEmail(ctx, "")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestKVDirectory_LinkSubject(t *testing.T) {
	ctx := context.Background()
	dir := users.NewKVDirectory(kvstore.NewMemoryStore())

	u := &users.User{Email: "jane@example.com"}
	require.NoError(t, dir.Create(ctx, u))

	require.NoError(t, dir.LinkSubject(ctx, u.ID, "auth0|1"))
	linked, err := dir.GetBySubject(ctx, "auth0|1")
	require.NoError(t, err)
	require.Equal(t, u.ID, linked.ID)
	require.False(t, linked.LastLogin.IsZero())

	// Relinking the same subject is fine, another subject is not
	require.NoError(t, dir.LinkSubject(ctx, u.ID, "auth0|1"))
	require.ErrorIs(t, dir.LinkSubject(ctx, u.ID, "google|2"), apperrors.ErrConditionFailed)
	require.ErrorIs(t, dir.LinkSubject(ctx, "missing", "auth0|1"), apperrors.ErrNotFound)
}

func TestUser_ActiveTenantIDs(t *testing.T) {
	ctx := context.Background()
	dir := users.NewKVDirectory(kvstore.NewMemoryStore())

	u := &users.User{Email: "jane@example.com"}
	require.NoError(t, dir.Create(ctx, u))

	memberships := []users.TenantMembership{
		{TenantID: "tenant-a", Roles: []users.RoleType{users.RolePhotographer}, Status: users.MembershipActive, JoinedAt: time.Now()},
		{TenantID: "tenant-b", Roles: []users.RoleType{users.RoleCustomer}, Status: users.MembershipInvited},
		{TenantID: "tenant-c", Roles: []users.RoleType{users.RoleCustomer}, Status: users.MembershipSuspended},
	}
	for _, m := range memberships {
		require.NoError(t, dir.SetMembership(ctx, u.ID, m))
	}
	// Accepting the invite replaces the membership
	require.NoError(t, dir.SetMembership(ctx, u.ID, users.TenantMembership{
		TenantID: "tenant-b", Roles: []users.RoleType{users.RoleCustomer}, Status: users.MembershipActive,
	}))

	got, err := dir.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, got.Tenants, 3)
	require.Equal(t, []string{"tenant-a", "tenant-b"}, got.ActiveTenantIDs())
	require.True(t, got.HasTenantRole("tenant-a", users.RolePhotographer))
	require.False(t, got.HasTenantRole("tenant-c", users.RoleCustomer))

	got.Blocked = true
	require.Empty(t, got.ActiveTenantIDs())
}
