package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/booking-service/internal/domain"
)

const defaultRefreshKeyPrefix = "auth:refresh:"

type redisRefreshStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisRefreshStore returns a store shared by every replica using the same Redis.
// Expiry is delegated to key TTLs and consumption uses GETDEL, so a token is handed out once.
func NewRedisRefreshStore(client redis.UniversalClient, prefix string) RefreshTokenStore {
	if prefix == "" {
		prefix = defaultRefreshKeyPrefix
	}
	return &redisRefreshStore{client: client, prefix: prefix, now: time.Now}
}

func (s *redisRefreshStore) key(token string) string {
	return s.prefix + token
}

func (s *redisRefreshStore) Put(ctx context.Context, token string, session domain.RefreshSession) error {
	ttl := time.Duration(0)
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return nil
		}
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode refresh session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store refresh session: %w", err)
	}
	return nil
}

func (s *redisRefreshStore) Consume(ctx context.Context, token string) (*domain.RefreshSession, error) {
	payload, err := s.client.GetDel(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRefreshSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume refresh session: %w", err)
	}

	var session domain.RefreshSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode refresh session: %w", err)
	}
	if session.Expired(s.now()) {
		return nil, ErrRefreshSessionNotFound
	}
	return &session, nil
}

func (s *redisRefreshStore) Remove(ctx context.Context, token string) (*domain.RefreshSession, error) {
	payload, err := s.client.GetDel(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("remove refresh session: %w", err)
	}

	var session domain.RefreshSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode refresh session: %w", err)
	}
	return &session, nil
}

// DeleteExpired is a no-op: Redis evicts sessions through key TTLs.
func (s *redisRefreshStore) DeleteExpired(context.Context) (int, error) {
	return 0, nil
}
