package domain

import "errors"

// Error kinds surfaced by the authentication subsystem. Callers match them with errors.Is.
var (
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrRegistrationConflict  = errors.New("registration conflict")
	ErrInvalidRefreshToken   = errors.New("invalid refresh token")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInternalInconsistency = errors.New("internal inconsistency")
)
