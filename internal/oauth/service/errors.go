package service

import "errors"

// Sentinel errors named after the RFC 6749 error codes they surface as. The
// HTTP layer maps them onto JSON bodies or redirect query parameters; the
// services never reach for net/http themselves.
var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInvalidGrant   = errors.New("invalid_grant")
	ErrInvalidClient  = errors.New("invalid_client")
	ErrInvalidScope   = errors.New("invalid_scope")
	ErrAccessDenied   = errors.New("access_denied")

	// Verification gate failures. The HTTP middleware renders both as a
	// uniform 401/403; the distinction is for hosts calling the gate directly.
	ErrInvalidToken      = errors.New("invalid_token")
	ErrInsufficientScope = errors.New("insufficient_scope")
)
