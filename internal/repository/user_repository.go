package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/booking-service/internal/domain"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("user already exists")
)

const uniqueViolation = "23505"

// UserRepository is the user directory consulted by the auth subsystem.
type UserRepository interface {
	FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Exists(ctx context.Context, username, email, phone string) (bool, error)
	Create(ctx context.Context, username, passwordHash, email, phone string) error
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const selectUserColumns = `
        SELECT user_id, username, password_hash, email, phone, user_type, avatar_url,
               real_name, is_verified, balance::float8, status, created_at, updated_at
        FROM users`

func (r *userRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	const query = selectUserColumns + ` WHERE username=$1 OR email=$1 LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, query, identifier))
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = selectUserColumns + ` WHERE user_id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = selectUserColumns + ` WHERE username=$1`
	return scanUser(r.pool.QueryRow(ctx, query, username))
}

func (r *userRepository) Exists(ctx context.Context, username, email, phone string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM users WHERE username=$1 OR email=$2 OR phone=$3
        )`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, username, email, phone).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *userRepository) Create(ctx context.Context, username, passwordHash, email, phone string) error {
	const query = `
        INSERT INTO users (username, password_hash, email, phone, user_type, status)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		username,
		passwordHash,
		email,
		phone,
		domain.UserTypeCustomer,
		domain.UserStatusActive,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	const query = `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE user_id=$1`

	tag, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Email,
		&user.Phone,
		&user.UserType,
		&user.AvatarURL,
		&user.RealName,
		&user.IsVerified,
		&user.Balance,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
