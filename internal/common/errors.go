// Package common defines shared constants and sentinel errors used across
// the session service layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal   = errors.New("internal error")
	ErrInvalidInput = errors.New("invalid input")

	// Session errors surfaced to the boundary layer as-is.
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrMissingToken        = errors.New("missing token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidUser         = errors.New("invalid user")

	// Access token errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
