package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/booking-service/internal/domain"
)

// refreshTokenBytes is the entropy of an opaque refresh token (256 bits).
const refreshTokenBytes = 32

// ErrRefreshSessionNotFound is returned when a refresh token is unknown, consumed or expired.
var ErrRefreshSessionNotFound = errors.New("refresh session not found")

// RefreshTokenStore maps opaque refresh tokens to the session they authorize.
// Consume must be linearizable per token: of two concurrent calls at most one succeeds.
type RefreshTokenStore interface {
	Put(ctx context.Context, token string, session domain.RefreshSession) error
	Consume(ctx context.Context, token string) (*domain.RefreshSession, error)
	// Remove deletes the session and returns it, or nil when the token was unknown.
	Remove(ctx context.Context, token string) (*domain.RefreshSession, error)
	DeleteExpired(ctx context.Context) (int, error)
}

// GenerateRefreshToken returns a URL-safe random token.
func GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type memoryRefreshStore struct {
	mu       sync.Mutex
	sessions map[string]domain.RefreshSession
	now      func() time.Time
}

// NewMemoryRefreshStore returns a process-local store. Sessions do not survive restarts and
// are not shared between replicas.
func NewMemoryRefreshStore() RefreshTokenStore {
	return &memoryRefreshStore{
		sessions: make(map[string]domain.RefreshSession),
		now:      time.Now,
	}
}

func (s *memoryRefreshStore) Put(_ context.Context, token string, session domain.RefreshSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = session
	return nil
}

func (s *memoryRefreshStore) Consume(_ context.Context, token string) (*domain.RefreshSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, ErrRefreshSessionNotFound
	}
	delete(s.sessions, token)
	if session.Expired(s.now()) {
		return nil, ErrRefreshSessionNotFound
	}
	return &session, nil
}

func (s *memoryRefreshStore) Remove(_ context.Context, token string) (*domain.RefreshSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	delete(s.sessions, token)
	return &session, nil
}

func (s *memoryRefreshStore) DeleteExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed, nil
}
