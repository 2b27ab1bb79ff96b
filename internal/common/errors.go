// Package common defines sentinel errors shared across the account server
// layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// repository-level errors
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// request validation
	ErrValidation = errors.New("validation error")

	// token lifecycle errors. Absent, consumed and expired tokens are
	// reported identically on purpose: the caller's remedy is the same
	// (request a new token), and distinguishing them would leak state.
	ErrTokenInvalid = errors.New("token invalid or expired")

	// auth errors
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// key custody errors
	ErrScopeNotFound = errors.New("key scope not found")
	ErrNoRecord      = errors.New("no key record")

	// infrastructure errors (retryable, never a domain outcome)
	ErrUnavailable = errors.New("backing store unavailable")
)
