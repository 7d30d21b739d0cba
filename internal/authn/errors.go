package authn

import "errors"

var (
	// ErrUnauthenticated is returned for a missing, malformed, unknown, or
	// revoked token.
	ErrUnauthenticated = errors.New("authn: unauthenticated")
	// ErrInvalidCredentialFormat is returned when the caller's bearer/basic
	// value does not parse as a cutman token at all.
	ErrInvalidCredentialFormat = errors.New("authn: invalid credential format")
)
