package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

var errKind = errors.New("kind")

func TestWrapKeepsCauseForErrorsIs(t *testing.T) {
	err := Wrap(errKind, "SOME_CODE", "public message", http.StatusUnauthorized)

	require.ErrorIs(t, err, errKind)
	require.Equal(t, "public message", err.Message)
	require.Equal(t, "public message: kind", err.Error())
}

func TestToDomainError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		require.Nil(t, ToDomainError(nil))
	})

	t.Run("wrapped domain error is unwrapped", func(t *testing.T) {
		inner := NewConflict("taken", nil)
		de := ToDomainError(fmt.Errorf("register: %w", inner))
		require.Equal(t, "CONFLICT", de.Code)
		require.Equal(t, http.StatusConflict, de.HTTPStatus)
	})

	t.Run("unauthorized keeps its status", func(t *testing.T) {
		de := ToDomainError(NewUnauthorized("unauthorized"))
		require.Equal(t, "UNAUTHORIZED", de.Code)
		require.Equal(t, http.StatusUnauthorized, de.HTTPStatus)
	})

	t.Run("raw error becomes opaque internal error", func(t *testing.T) {
		de := ToDomainError(errors.New("pq: connection refused"))
		require.Equal(t, "INTERNAL_ERROR", de.Code)
		require.Equal(t, "internal server error", de.Message)
		require.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	})
}
