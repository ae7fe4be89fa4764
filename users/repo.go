package users

import "context"

// Directory resolves storefront users. Lookups return ErrNotFound when there is no match.
type Directory interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetBySubject(ctx context.Context, subject string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// LinkSubject attaches an authority subject to an existing user. Fails with
	// ErrConditionFailed if the user is already linked to a different subject.
	LinkSubject(ctx context.Context, userID, subject string) error

	// Create provisions a new user, assigning an id if it has none
	Create(ctx context.Context, user *User) error

	// SetMembership adds or replaces the user's membership of a tenant
	SetMembership(ctx context.Context, userID string, membership TenantMembership) error
}
