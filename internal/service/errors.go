package service

import (
	"fmt"
	"net/http"

	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/pkg/util/errorutil"
)

// Caller-facing messages. They never say which part of a credential was wrong.
const (
	msgInvalidCredentials   = "invalid credentials"
	msgRegistrationConflict = "username, email or phone already registered"
	msgInvalidRefreshToken  = "invalid refresh token"
)

func errAuthenticationFailed() error {
	return errorutil.Wrap(domain.ErrAuthenticationFailed, "AUTHENTICATION_FAILED", msgInvalidCredentials, http.StatusUnauthorized)
}

func errRegistrationConflict() error {
	return errorutil.Wrap(domain.ErrRegistrationConflict, "REGISTRATION_CONFLICT", msgRegistrationConflict, http.StatusConflict)
}

func errInvalidRefreshToken() error {
	return errorutil.Wrap(domain.ErrInvalidRefreshToken, "INVALID_REFRESH_TOKEN", msgInvalidRefreshToken, http.StatusUnauthorized)
}

func errUnauthorized() error {
	return errorutil.Wrap(domain.ErrUnauthorized, "UNAUTHORIZED", "unauthorized", http.StatusUnauthorized)
}

func errInternal(op string, err error) error {
	return errorutil.NewInternalError(fmt.Errorf("%s: %w", op, err))
}

func errInconsistent(op, detail string) error {
	return errorutil.NewInternalError(fmt.Errorf("%s: %w: %s", op, domain.ErrInternalInconsistency, detail))
}
