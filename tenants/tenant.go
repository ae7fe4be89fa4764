// Package tenants holds the storefronts hosted by the platform.
package tenants

// Tenant is a single storefront
type Tenant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Domain   string `json:"domain"`             // Storefront host, e.g. "studio-a.example.com"
	Disabled bool   `json:"disabled,omitempty"` // Disabled storefronts grant no membership
}
