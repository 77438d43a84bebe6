package common

import "errors"

var (
	// Store-level errors.
	ErrorNotFound = errors.New("not found")

	// Generic flow-control errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Token lifecycle errors.
	ErrMalformedSession = errors.New("malformed session token")
	ErrSessionExpired   = errors.New("session expired")
	ErrNoSession        = errors.New("no session token present")

	// Transport errors.
	ErrServerUnreachable = errors.New("request timed out or server unreachable")

	// Credential-exchange errors.
	ErrInvalidCredentials = errors.New("invalid username or password")
)
