package auth

import "errors"

var (
	// ErrInvalidCredentials covers unknown email, wrong password, and unknown
	// API keys. The message is deliberately identical in every case so login
	// failures never reveal whether an account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateEmail rejects registration with an already-used email.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrTokenExpired indicates a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates a malformed token, a bad signature, or a
	// subject that no longer resolves to an active account.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrMissingPermission indicates the identity lacks a capability. Wrapped
	// with the capability name, which is safe to disclose.
	ErrMissingPermission = errors.New("missing permission")

	// ErrTenantMismatch indicates a non-admin identity targeting another
	// tenant. Never enriched with the target tenant's data.
	ErrTenantMismatch = errors.New("tenant access denied")

	// ErrConfig marks construction-time misconfiguration. Fatal at startup,
	// never surfaced per-request.
	ErrConfig = errors.New("auth: invalid configuration")

	// ErrNotFound is returned by stores when no row matches.
	ErrNotFound = errors.New("auth: not found")
)
