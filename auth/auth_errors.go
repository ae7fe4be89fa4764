package auth

import "errors"

var (
	ErrAuthorityDenied  = errors.New("authority returned an error")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrTenantForbidden  = errors.New("tenant not available to user")
)
