package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Login & Logout
	RouteAuthLogin     = "/auth/login"
	RouteAuthLogout    = "/auth/logout"
	RouteAuthLogoutAll = "/auth/logout-all"
	RouteCallback      = "/callback"

	// API Routes
	RouteAPISession  = "/api/session"
	RouteAPIInternal = "/api/internal/"
	RouteHealth      = "/healthz"

	// Where failed logins land
	RouteLoginFailed = "/"
)

const (
	// HeaderTenantID names the storefront an internal API call acts on
	HeaderTenantID = "X-Tenant-ID"
)
