package domain

import "time"

// UserType is the role tag carried by every account.
type UserType string

const (
	UserTypeCustomer UserType = "customer"
	UserTypeWorker   UserType = "worker"
	UserTypeAdmin    UserType = "admin"
)

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusBanned   UserStatus = "banned"
)

// User is the durable identity record owned by the user directory.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	Phone        string
	UserType     UserType
	AvatarURL    *string
	RealName     *string
	IsVerified   bool
	Balance      float64
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
