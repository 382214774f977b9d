package repository

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/booking-service/internal/domain"
)

type memoryUserRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]domain.User
}

// NewMemoryUserRepository returns a process-local directory used when no database is configured.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{nextID: 1, users: make(map[int64]domain.User)}
}

func (r *memoryUserRepository) FindByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	return r.find(func(u domain.User) bool {
		return u.Username == identifier || u.Email == identifier
	})
}

func (r *memoryUserRepository) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r *memoryUserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *memoryUserRepository) Exists(_ context.Context, username, email, phone string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.existsLocked(username, email, phone), nil
}

func (r *memoryUserRepository) Create(_ context.Context, username, passwordHash, email, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.existsLocked(username, email, phone) {
		return ErrDuplicate
	}

	now := time.Now().UTC()
	id := r.nextID
	r.nextID++
	r.users[id] = domain.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Email:        email,
		Phone:        phone,
		UserType:     domain.UserTypeCustomer,
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return nil
}

func (r *memoryUserRepository) UpdatePasswordHash(_ context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = user
	return nil
}

// Delete removes a user. Only the in-memory directory supports it.
func (r *memoryUserRepository) Delete(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

func (r *memoryUserRepository) find(match func(domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if match(user) {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryUserRepository) existsLocked(username, email, phone string) bool {
	for _, user := range r.users {
		if user.Username == username || user.Email == email || user.Phone == phone {
			return true
		}
	}
	return false
}
