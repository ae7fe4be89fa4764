package errors

import "errors"

// Common error types for the storefront auth subsystem
var (
	// Login flow errors
	ErrInvalidState = errors.New("invalid login state")
	ErrExchange     = errors.New("authorization code exchange failed")
	ErrRefresh      = errors.New("token refresh failed")

	// Crypto errors
	ErrIntegrity = errors.New("envelope integrity check failed")

	// Request errors
	ErrCsrfMismatch = errors.New("csrf token mismatch")

	// Storage errors
	ErrNotFound        = errors.New("not found")
	ErrConditionFailed = errors.New("conditional update failed")

	// Directory errors
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
)
