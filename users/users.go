// Package users is the storefront's user directory: local user records linked
// to authority subjects, with their tenant memberships.
package users

import (
	"strings"
	"time"
)

// RoleType represents a user role either at system or tenant level
type RoleType string

const (
	// System-level roles
	RoleSuperAdmin RoleType = "super_admin" // Can manage every storefront

	// Tenant-level roles
	RoleTenantAdmin  RoleType = "tenant_admin" // Manages albums, pricing and orders of a storefront
	RolePhotographer RoleType = "photographer" // Uploads and publishes albums
	RoleCustomer     RoleType = "customer"     // Buys prints and digitals
)

// MembershipStatus is the state of a user's membership in a tenant
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipInvited   MembershipStatus = "invited"
	MembershipSuspended MembershipStatus = "suspended"
)

// TenantMembership represents a user's membership and roles within a specific tenant
type TenantMembership struct {
	TenantID string           `json:"tenant_id"`
	Roles    []RoleType       `json:"roles"`
	Status   MembershipStatus `json:"status"`
	JoinedAt time.Time        `json:"joined_at"`
}

type User struct {
	ID         string    `json:"id,omitempty"`          // Unique identifier for the user
	Subject    string    `json:"subject,omitempty"`     // Authority-issued subject linked to this user
	Email      string    `json:"email,omitempty"`       // User's email address
	FirstName  string    `json:"first_name,omitempty"`  // First name of the user
	LastName   string    `json:"last_name,omitempty"`   // Last name of the user
	FullName   string    `json:"full_name,omitempty"`   // Display name from the authority
	DateJoined time.Time `json:"date_joined,omitempty"` // Date and time when the user was provisioned
	LastLogin  time.Time `json:"last_login,omitempty"`  // Last time the user logged in

	// Role and tenant membership
	SystemRoles []RoleType         `json:"system_roles,omitempty"` // System-wide roles
	Tenants     []TenantMembership `json:"tenants,omitempty"`      // Per-tenant roles and membership

	Blocked bool `json:"blocked,omitempty"` // Blocked users keep their session but get no tenant access
}

// NormalizeEmail is the form emails are indexed and compared in
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DisplayName prefers the stored full name
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ActiveTenantIDs lists the tenants the user is an active member of
func (u *User) ActiveTenantIDs() []string {
	if u.Blocked {
		return nil
	}
	var ids []string
	for _, t := range u.Tenants {
		if t.Status == MembershipActive {
			ids = append(ids, t.TenantID)
		}
	}
	return ids
}

// IsSuperAdmin returns true if the user has super admin privileges
func (u *User) IsSuperAdmin() bool {
	for _, role := range u.SystemRoles {
		if role == RoleSuperAdmin {
			return true
		}
	}
	return false
}

// GetTenantMembership returns the user's membership for a specific tenant
func (u *User) GetTenantMembership(tenantID string) *TenantMembership {
	for i := range u.Tenants {
		if u.Tenants[i].TenantID == tenantID {
			return &u.Tenants[i]
		}
	}
	return nil
}

// GetRolesForTenant returns the user's roles within an active tenant membership
func (u *User) GetRolesForTenant(tenantID string) []RoleType {
	membership := u.GetTenantMembership(tenantID)
	if membership != nil && membership.Status == MembershipActive && !u.Blocked {
		return membership.Roles
	}
	return nil
}

// HasTenantRole checks if the user has a specific role within a tenant
func (u *User) HasTenantRole(tenantID string, role RoleType) bool {
	for _, r := range u.GetRolesForTenant(tenantID) {
		if r == role {
			return true
		}
	}
	return false
}
