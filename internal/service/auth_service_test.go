package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/booking-service/internal/auth"
	"github.com/spec-kit/booking-service/internal/config"
	"github.com/spec-kit/booking-service/internal/domain"
	"github.com/spec-kit/booking-service/internal/events"
	"github.com/spec-kit/booking-service/internal/observability"
	"github.com/spec-kit/booking-service/internal/repository"
	"github.com/spec-kit/booking-service/pkg/util/errorutil"
)

const testJWTSecret = "service-test-secret"

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             testJWTSecret,
			AccessTokenTTLMinutes: 60,
			RefreshTokenTTLHours:  24,
			Argon2MemoryKB:        1024,
			Argon2Iterations:      1,
			Argon2Parallelism:     1,
		},
	}
}

type serviceFixture struct {
	svc     *AuthService
	users   repository.UserRepository
	store   auth.RefreshTokenStore
	metrics *observability.Metrics
	events  *eventRecorder
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	return newFixtureWithStore(t, auth.NewMemoryRefreshStore())
}

func newFixtureWithStore(t *testing.T, store auth.RefreshTokenStore) *serviceFixture {
	t.Helper()

	users := repository.NewMemoryUserRepository()
	dispatcher := events.NewInMemoryDispatcher()
	recorder := &eventRecorder{}
	for _, et := range []events.EventType{
		events.EventUserRegistered,
		events.EventUserLoggedIn,
		events.EventSessionRefreshed,
		events.EventSessionLoggedOut,
	} {
		dispatcher.Subscribe(et, recorder.handle)
	}
	metrics := observability.NewMetrics()

	svc, err := NewAuthService(testConfig(), AuthDependencies{
		UserRepo:     users,
		RefreshStore: store,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
	})
	require.NoError(t, err)

	return &serviceFixture{svc: svc, users: users, store: store, metrics: metrics, events: recorder}
}

func (f *serviceFixture) registerAlice(t *testing.T) *domain.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), "alice", "a@x.com", "111", "pw1")
	require.NoError(t, err)
	return user
}

func requireDomainCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	require.Error(t, err)
	var de *errorutil.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %T", err)
	require.Equal(t, code, de.Code)
	require.Equal(t, status, de.HTTPStatus)
}

func TestNewAuthServiceRequiresCollaborators(t *testing.T) {
	_, err := NewAuthService(testConfig(), AuthDependencies{RefreshStore: auth.NewMemoryRefreshStore()})
	require.Error(t, err)

	_, err = NewAuthService(testConfig(), AuthDependencies{UserRepo: repository.NewMemoryUserRepository()})
	require.Error(t, err)

	cfg := testConfig()
	cfg.Auth.Argon2Parallelism = 0
	_, err = NewAuthService(cfg, AuthDependencies{
		UserRepo:     repository.NewMemoryUserRepository(),
		RefreshStore: auth.NewMemoryRefreshStore(),
	})
	require.Error(t, err)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user := f.registerAlice(t)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, domain.UserTypeCustomer, user.UserType)
	require.Equal(t, domain.UserStatusActive, user.Status)
	require.NotEqual(t, "pw1", user.PasswordHash)

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := f.svc.Register(ctx, "alice2", "a@x.com", "222", "pw")
		requireDomainCode(t, err, "REGISTRATION_CONFLICT", http.StatusConflict)
		require.ErrorIs(t, err, domain.ErrRegistrationConflict)
		require.Equal(t, msgRegistrationConflict, errorutil.ToDomainError(err).Message)
	})

	t.Run("duplicate username and phone conflict", func(t *testing.T) {
		_, err := f.svc.Register(ctx, "alice", "other@x.com", "333", "pw")
		requireDomainCode(t, err, "REGISTRATION_CONFLICT", http.StatusConflict)

		_, err = f.svc.Register(ctx, "carol", "c@x.com", "111", "pw")
		requireDomainCode(t, err, "REGISTRATION_CONFLICT", http.StatusConflict)
	})

	require.Equal(t, []events.EventType{events.EventUserRegistered}, f.events.types())
	snap := f.metrics.Snapshot()
	require.Equal(t, int64(1), snap.AuthOutcomes["register|ok"])
	require.Equal(t, int64(3), snap.AuthOutcomes["register|conflict"])
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.registerAlice(t)

	for _, identifier := range []string{"alice", "a@x.com"} {
		res, err := f.svc.Login(ctx, identifier, "pw1")
		require.NoError(t, err, identifier)
		require.Equal(t, alice.ID, res.User.ID)
		require.NotEmpty(t, res.RefreshToken)
		require.True(t, res.RefreshExpiresAt.After(res.AccessExpiresAt))

		claims, err := f.svc.TokenManager().ParseToken(res.AccessToken, domain.TokenTypeAccess)
		require.NoError(t, err)
		require.Equal(t, alice.ID, claims.UserID)
		require.Equal(t, "alice", claims.Username)
		require.Equal(t, domain.TokenTypeAccess, claims.TokenType)
		require.Equal(t, domain.UserTypeCustomer, claims.UserType)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.registerAlice(t)

	_, unknownErr := f.svc.Login(ctx, "nobody", "pw1")
	_, wrongErr := f.svc.Login(ctx, "alice", "wrong")

	requireDomainCode(t, unknownErr, "AUTHENTICATION_FAILED", http.StatusUnauthorized)
	requireDomainCode(t, wrongErr, "AUTHENTICATION_FAILED", http.StatusUnauthorized)
	require.ErrorIs(t, unknownErr, domain.ErrAuthenticationFailed)
	require.Equal(t, errorutil.ToDomainError(unknownErr).Message, errorutil.ToDomainError(wrongErr).Message)
	require.Equal(t, int64(2), f.metrics.Snapshot().AuthOutcomes["login|failed"])
}

func TestRefreshRotatesAndIsSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.registerAlice(t)

	login, err := f.svc.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	pair, err := f.svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, pair.RefreshToken)

	claims, err := f.svc.TokenManager().ParseToken(pair.AccessToken, domain.TokenTypeAccess)
	require.NoError(t, err)
	require.Equal(t, alice.ID, claims.UserID)

	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	requireDomainCode(t, err, "INVALID_REFRESH_TOKEN", http.StatusUnauthorized)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	require.Equal(t, []events.EventType{
		events.EventUserRegistered,
		events.EventUserLoggedIn,
		events.EventSessionRefreshed,
		events.EventSessionRefreshed,
	}, f.events.types())
}

func TestConcurrentRefreshHasSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.registerAlice(t)

	login, err := f.svc.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.svc.Refresh(ctx, login.RefreshToken); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, winners)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.registerAlice(t)

	login, err := f.svc.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	f.svc.Logout(ctx, login.RefreshToken)
	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	requireDomainCode(t, err, "INVALID_REFRESH_TOKEN", http.StatusUnauthorized)

	// Unknown and repeated tokens are accepted silently.
	f.svc.Logout(ctx, login.RefreshToken)
	f.svc.Logout(ctx, "never-issued")
	require.Equal(t, int64(3), f.metrics.Snapshot().AuthOutcomes["logout|ok"])
}

func TestLogoutEventNamesSessionOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.registerAlice(t)

	login, err := f.svc.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	f.svc.Logout(ctx, login.RefreshToken)
	f.svc.Logout(ctx, login.RefreshToken)

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	var loggedOut []events.Event
	for _, e := range f.events.events {
		if e.Type == events.EventSessionLoggedOut {
			loggedOut = append(loggedOut, e)
		}
	}
	require.Len(t, loggedOut, 1)
	require.Equal(t, alice.ID, loggedOut[0].UserID)
	require.Equal(t, "alice", loggedOut[0].Username)
}

func TestRegisterReadBackMissIsInternalInconsistency(t *testing.T) {
	users := &unreadableUserRepo{UserRepository: repository.NewMemoryUserRepository()}
	svc, err := NewAuthService(testConfig(), AuthDependencies{
		UserRepo:     users,
		RefreshStore: auth.NewMemoryRefreshStore(),
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "alice", "a@x.com", "111", "pw1")
	requireDomainCode(t, err, "INTERNAL_ERROR", http.StatusInternalServerError)
	require.ErrorIs(t, err, domain.ErrInternalInconsistency)
	require.Equal(t, "internal server error", errorutil.ToDomainError(err).Message)
}

func TestLoginUpgradesWeakPasswordHash(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	store := auth.NewMemoryRefreshStore()

	weak, err := NewAuthService(testConfig(), AuthDependencies{UserRepo: users, RefreshStore: store})
	require.NoError(t, err)
	alice, err := weak.Register(ctx, "alice", "a@x.com", "111", "pw1")
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Auth.Argon2Iterations = 2
	strong, err := NewAuthService(cfg, AuthDependencies{UserRepo: users, RefreshStore: store})
	require.NoError(t, err)
	require.True(t, strong.hasher.NeedsRehash(alice.PasswordHash))

	_, err = strong.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	stored, err := users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotEqual(t, alice.PasswordHash, stored.PasswordHash)
	require.False(t, strong.hasher.NeedsRehash(stored.PasswordHash))

	_, err = strong.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	again, err := users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, stored.PasswordHash, again.PasswordHash)
}

func TestRefreshFailsForDeletedOrInactiveUser(t *testing.T) {
	ctx := context.Background()

	t.Run("deleted", func(t *testing.T) {
		f := newFixture(t)
		alice := f.registerAlice(t)
		login, err := f.svc.Login(ctx, "alice", "pw1")
		require.NoError(t, err)

		f.users.(interface{ Delete(int64) }).Delete(alice.ID)

		_, err = f.svc.Refresh(ctx, login.RefreshToken)
		requireDomainCode(t, err, "INVALID_REFRESH_TOKEN", http.StatusUnauthorized)

		_, err = f.svc.CurrentUser(ctx, alice.ID)
		requireDomainCode(t, err, "UNAUTHORIZED", http.StatusUnauthorized)
	})

	t.Run("inactive", func(t *testing.T) {
		users := &statusOverrideRepo{UserRepository: repository.NewMemoryUserRepository()}
		svc, err := NewAuthService(testConfig(), AuthDependencies{
			UserRepo:     users,
			RefreshStore: auth.NewMemoryRefreshStore(),
		})
		require.NoError(t, err)

		_, err = svc.Register(ctx, "alice", "a@x.com", "111", "pw1")
		require.NoError(t, err)
		login, err := svc.Login(ctx, "alice", "pw1")
		require.NoError(t, err)

		users.status = domain.UserStatusBanned
		_, err = svc.Refresh(ctx, login.RefreshToken)
		requireDomainCode(t, err, "INVALID_REFRESH_TOKEN", http.StatusUnauthorized)

		_, err = svc.Login(ctx, "alice", "pw1")
		requireDomainCode(t, err, "AUTHENTICATION_FAILED", http.StatusUnauthorized)
	})
}

func TestRefreshStoreFailureIsInternal(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWithStore(t, failingRefreshStore{})
	f.registerAlice(t)

	_, err := f.svc.Login(ctx, "alice", "pw1")
	requireDomainCode(t, err, "INTERNAL_ERROR", http.StatusInternalServerError)

	_, err = f.svc.Refresh(ctx, "any")
	requireDomainCode(t, err, "INTERNAL_ERROR", http.StatusInternalServerError)

	// Logout swallows backend errors.
	f.svc.Logout(ctx, "any")
}

func TestRefreshSessionCarriesExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.registerAlice(t)

	now := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	login, err := f.svc.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	require.Equal(t, now.Add(24*time.Hour), login.RefreshExpiresAt)

	// The session is already past its expiry on the wall clock.
	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	requireDomainCode(t, err, "INVALID_REFRESH_TOKEN", http.StatusUnauthorized)
}

type statusOverrideRepo struct {
	repository.UserRepository
	status domain.UserStatus
}

func (r *statusOverrideRepo) override(u *domain.User, err error) (*domain.User, error) {
	if err == nil && r.status != "" {
		u.Status = r.status
	}
	return u, err
}

func (r *statusOverrideRepo) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.override(r.UserRepository.FindByID(ctx, id))
}

func (r *statusOverrideRepo) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	return r.override(r.UserRepository.FindByIdentifier(ctx, identifier))
}

// unreadableUserRepo accepts writes but never finds the user it just created.
type unreadableUserRepo struct {
	repository.UserRepository
}

func (unreadableUserRepo) FindByUsername(context.Context, string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

var errBackendDown = errors.New("backend down")

type failingRefreshStore struct{}

func (failingRefreshStore) Put(context.Context, string, domain.RefreshSession) error {
	return errBackendDown
}

func (failingRefreshStore) Consume(context.Context, string) (*domain.RefreshSession, error) {
	return nil, errBackendDown
}

func (failingRefreshStore) Remove(context.Context, string) (*domain.RefreshSession, error) {
	return nil, errBackendDown
}

func (failingRefreshStore) DeleteExpired(context.Context) (int, error) { return 0, errBackendDown }
