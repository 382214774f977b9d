package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Algorithm = "argon2id"
	saltLength      = 16
	keyLength       = 32
)

// Argon2Params are the cost parameters embedded in every encoded hash.
type Argon2Params struct {
	MemoryKB    uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultArgon2Params mirrors the argon2id defaults recommended by OWASP.
var DefaultArgon2Params = Argon2Params{MemoryKB: 19456, Iterations: 2, Parallelism: 1}

// PasswordHasher hashes and verifies credentials with argon2id.
type PasswordHasher struct {
	params Argon2Params
	rand   io.Reader
}

// NewPasswordHasher validates params and builds a hasher.
func NewPasswordHasher(params Argon2Params) (*PasswordHasher, error) {
	if params.Iterations < 1 {
		return nil, errors.New("argon2 iterations must be >= 1")
	}
	if params.Parallelism < 1 {
		return nil, errors.New("argon2 parallelism must be >= 1")
	}
	if params.MemoryKB < 8*uint32(params.Parallelism) {
		return nil, errors.New("argon2 memory must be >= 8KB per lane")
	}
	return &PasswordHasher{params: params, rand: rand.Reader}, nil
}

// Hash derives a PHC-encoded argon2id digest using a fresh random salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	digest := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.MemoryKB, h.params.Parallelism, keyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Algorithm,
		argon2.Version,
		h.params.MemoryKB,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	), nil
}

// Verify reports whether password matches encoded. A malformed encoding is
// indistinguishable from a wrong password.
func (h *PasswordHasher) Verify(password, encoded string) bool {
	parsed, err := parseArgon2Hash(encoded)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.params.Iterations, parsed.params.MemoryKB, parsed.params.Parallelism, uint32(len(parsed.digest)))
	return subtle.ConstantTimeCompare(computed, parsed.digest) == 1
}

// NeedsRehash reports whether encoded was produced with weaker parameters than the hasher's.
func (h *PasswordHasher) NeedsRehash(encoded string) bool {
	parsed, err := parseArgon2Hash(encoded)
	if err != nil {
		return true
	}
	return parsed.params.MemoryKB < h.params.MemoryKB ||
		parsed.params.Iterations < h.params.Iterations ||
		parsed.params.Parallelism < h.params.Parallelism ||
		len(parsed.digest) != keyLength
}

type argon2Hash struct {
	params Argon2Params
	salt   []byte
	digest []byte
}

func parseArgon2Hash(encoded string) (*argon2Hash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid hash format")
	}
	if parts[1] != argon2Algorithm {
		return nil, errors.New("unsupported algorithm")
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, errors.New("unsupported argon2 version")
	}

	var params Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.MemoryKB, &params.Iterations, &params.Parallelism); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.Iterations < 1 || params.Parallelism < 1 || params.MemoryKB < 8*uint32(params.Parallelism) {
		return nil, errors.New("invalid parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, errors.New("invalid salt")
	}
	digest, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(digest) == 0 {
		return nil, errors.New("invalid digest")
	}

	return &argon2Hash{params: params, salt: salt, digest: digest}, nil
}
