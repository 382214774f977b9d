package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Cheap parameters keep the suite fast; production defaults live in DefaultArgon2Params.
var testArgon2Params = Argon2Params{MemoryKB: 1024, Iterations: 1, Parallelism: 1}

func newTestHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(testArgon2Params)
	require.NoError(t, err)
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("pw123")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	require.True(t, h.Verify("pw123", encoded))
	require.False(t, h.Verify("pw124", encoded))
	require.False(t, h.Verify("", encoded))
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := newTestHasher(t)

	first, err := h.Hash("same-password")
	require.NoError(t, err)
	second, err := h.Hash("same-password")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, h.Verify("same-password", first))
	require.True(t, h.Verify("same-password", second))
}

func TestVerifyUsesEmbeddedParameters(t *testing.T) {
	weak := newTestHasher(t)
	encoded, err := weak.Hash("pw123")
	require.NoError(t, err)

	strong, err := NewPasswordHasher(Argon2Params{MemoryKB: 2048, Iterations: 2, Parallelism: 1})
	require.NoError(t, err)

	require.True(t, strong.Verify("pw123", encoded))
	require.True(t, strong.NeedsRehash(encoded))
	require.False(t, weak.NeedsRehash(encoded))
}

func TestVerifyMalformedHashIsFalse(t *testing.T) {
	h := newTestHasher(t)

	for _, encoded := range []string{
		"",
		"plaintext",
		"$2a$12$abcdefghijklmnopqrstuv",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$!!!",
		"$argon2id$v=16$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$ZGlnZXN0",
		"$argon2id$v=19$m=0,t=0,p=0$c2FsdHNhbHRzYWx0c2FsdA$ZGlnZXN0",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$ZGlnZXN0",
	} {
		require.False(t, h.Verify("pw123", encoded), encoded)
	}
}

func TestNewPasswordHasherRejectsBadParams(t *testing.T) {
	_, err := NewPasswordHasher(Argon2Params{MemoryKB: 1024, Iterations: 0, Parallelism: 1})
	require.Error(t, err)

	_, err = NewPasswordHasher(Argon2Params{MemoryKB: 1024, Iterations: 1, Parallelism: 0})
	require.Error(t, err)

	_, err = NewPasswordHasher(Argon2Params{MemoryKB: 4, Iterations: 1, Parallelism: 1})
	require.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestHashFailsWhenEntropyFails(t *testing.T) {
	h := newTestHasher(t)
	h.rand = failingReader{}

	_, err := h.Hash("pw123")
	require.Error(t, err)
}
