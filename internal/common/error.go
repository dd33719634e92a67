// Package common defines shared constants and sentinel errors used across
// client and server layers of walletsync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Validation errors: recoverable locally, surfaced to the caller,
	// no state mutation occurs.
	ErrNotDeleted        = errors.New("entity is not deleted")
	ErrNameConflict      = errors.New("name already in use")
	ErrDependencyExists  = errors.New("dependent records exist")
	ErrInvalidSyncStatus = errors.New("invalid sync status")
	ErrOwnerRequired     = errors.New("owner id is required")

	// Service-level errors (generic/internal flow control).
	ErrInternal       = errors.New("internal error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrSyncInProgress = errors.New("sync already in progress")

	// Auth / token lifecycle errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrUserExists          = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid login/password")
)
