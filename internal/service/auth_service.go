package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/booking-service/internal/auth"
	"github.com/spec-kit/booking-service/internal/config"
	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/events"
	"github.com/spec-kit/booking-service/internal/observability"
	"github.com/spec-kit/booking-service/internal/repository"
)

// timingDummyPassword is hashed once at startup so unknown identifiers cost a full verify.
const timingDummyPassword = "timing-equalization-placeholder"

// TokenPair is a freshly issued access token with its paired refresh token.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	TokenPair
	User *domain.User
}

// AuthService coordinates registration, login, refresh and logout flows.
type AuthService struct {
	users      repository.UserRepository
	refresh    auth.RefreshTokenStore
	hasher     *auth.PasswordHasher
	tokenMgr   *auth.TokenManager
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	refreshTTL time.Duration
	dummyHash  string
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	RefreshStore auth.RefreshTokenStore
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) (*AuthService, error) {
	if deps.UserRepo == nil {
		return nil, errors.New("auth service requires a user repository")
	}
	if deps.RefreshStore == nil {
		return nil, errors.New("auth service requires a refresh token store")
	}

	hasher, err := auth.NewPasswordHasher(auth.Argon2Params{
		MemoryKB:    uint32(cfg.Auth.Argon2MemoryKB),
		Iterations:  uint32(cfg.Auth.Argon2Iterations),
		Parallelism: uint8(cfg.Auth.Argon2Parallelism),
	})
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	dummyHash, err := hasher.Hash(timingDummyPassword)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	refreshTTL := cfg.Auth.RefreshTokenTTL()
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}

	return &AuthService{
		users:      deps.UserRepo,
		refresh:    deps.RefreshStore,
		hasher:     hasher,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		refreshTTL: refreshTTL,
		dummyHash:  dummyHash,
		now:        time.Now,
	}, nil
}

// Login authenticates by username or email and opens a new session.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	user, err := s.users.FindByIdentifier(ctx, identifier)
	if errors.Is(err, repository.ErrNotFound) {
		s.hasher.Verify(password, s.dummyHash)
		s.metrics.RecordAuthOutcome("login", "failed")
		return nil, errAuthenticationFailed()
	}
	if err != nil {
		return nil, errInternal("login: find user", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) || !user.IsActive() {
		s.metrics.RecordAuthOutcome("login", "failed")
		return nil, errAuthenticationFailed()
	}
	s.upgradePasswordHash(ctx, user, password)

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthOutcome("login", "ok")
	s.publish(ctx, events.NewEvent(events.EventUserLoggedIn, user.ID, user.Username, sessionPayload(pair)))
	return &LoginResult{TokenPair: *pair, User: user}, nil
}

// Register creates a customer account and returns the stored identity.
func (s *AuthService) Register(ctx context.Context, username, email, phone, password string) (*domain.User, error) {
	exists, err := s.users.Exists(ctx, username, email, phone)
	if err != nil {
		return nil, errInternal("register: uniqueness check", err)
	}
	if exists {
		s.metrics.RecordAuthOutcome("register", "conflict")
		return nil, errRegistrationConflict()
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, errInternal("register: hash password", err)
	}

	if err := s.users.Create(ctx, username, hash, email, phone); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.metrics.RecordAuthOutcome("register", "conflict")
			return nil, errRegistrationConflict()
		}
		return nil, errInternal("register: create user", err)
	}

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errInconsistent("register", "created user "+username+" not readable")
	}
	if err != nil {
		return nil, errInternal("register: read back user", err)
	}

	s.metrics.RecordAuthOutcome("register", "ok")
	s.publish(ctx, events.NewEvent(events.EventUserRegistered, user.ID, user.Username, nil))
	return user, nil
}

// Refresh redeems a refresh token exactly once for a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	session, err := s.refresh.Consume(ctx, refreshToken)
	if errors.Is(err, auth.ErrRefreshSessionNotFound) {
		s.metrics.RecordAuthOutcome("refresh", "invalid")
		return nil, errInvalidRefreshToken()
	}
	if err != nil {
		return nil, errInternal("refresh: consume session", err)
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		s.metrics.RecordAuthOutcome("refresh", "invalid")
		return nil, errInvalidRefreshToken()
	}
	if err != nil {
		return nil, errInternal("refresh: find user", err)
	}
	if !user.IsActive() {
		s.metrics.RecordAuthOutcome("refresh", "invalid")
		return nil, errInvalidRefreshToken()
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthOutcome("refresh", "ok")
	s.publish(ctx, events.NewEvent(events.EventSessionRefreshed, user.ID, user.Username, sessionPayload(pair)))
	return pair, nil
}

// Logout invalidates the refresh token. Unknown or already used tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	session, err := s.refresh.Remove(ctx, refreshToken)
	if err != nil {
		s.logger.Warn("logout: remove refresh session", zap.Error(err))
	}
	s.metrics.RecordAuthOutcome("logout", "ok")
	if session != nil {
		s.publish(ctx, events.NewEvent(events.EventSessionLoggedOut, session.UserID, session.Username, nil))
	}
}

// CurrentUser re-reads the live identity behind an access token.
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errUnauthorized()
	}
	if err != nil {
		return nil, errInternal("current user", err)
	}
	return user, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issueSession(ctx context.Context, user *domain.User) (*TokenPair, error) {
	access, accessExp, err := s.tokenMgr.GenerateAccessToken(user)
	if err != nil {
		return nil, errInternal("issue access token", err)
	}

	refresh, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, errInternal("issue refresh token", err)
	}
	refreshExp := s.now().Add(s.refreshTTL)

	if err := s.refresh.Put(ctx, refresh, domain.RefreshSession{
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: refreshExp,
	}); err != nil {
		return nil, errInternal("store refresh session", err)
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// upgradePasswordHash re-hashes with the configured parameters once the password is known.
// Failures keep the old hash, which still verifies.
func (s *AuthService) upgradePasswordHash(ctx context.Context, user *domain.User, password string) {
	if !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("rehash password", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		s.logger.Warn("store upgraded password hash", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = hash
	s.logger.Info("password hash upgraded", zap.Int64("user_id", user.ID))
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func sessionPayload(pair *TokenPair) events.SessionPayload {
	return events.SessionPayload{
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}
