package dto

import (
	"time"

	"github.com/spec-kit/booking-service/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// LoginRequest payload for login. Identifier is a username or an email.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// RefreshTokenRequest carries the refresh token for refresh and logout.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned whenever a new session is issued.
type TokenResponse struct {
	Token            string    `json:"token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// LoginResponse bundles tokens with the authenticated user.
type LoginResponse struct {
	TokenResponse
	User UserResponse `json:"user"`
}

// RegisterResponse wraps the created user.
type RegisterResponse struct {
	User UserResponse `json:"user"`
}

// UserResponse is the public view of a user. The password hash never leaves the service.
type UserResponse struct {
	ID         int64             `json:"user_id"`
	Username   string            `json:"username"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	UserType   domain.UserType   `json:"user_type"`
	AvatarURL  *string           `json:"avatar_url,omitempty"`
	RealName   *string           `json:"real_name,omitempty"`
	IsVerified bool              `json:"is_verified"`
	Balance    float64           `json:"balance"`
	Status     domain.UserStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// NewUserResponse maps a domain user to its public view.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Phone:      u.Phone,
		UserType:   u.UserType,
		AvatarURL:  u.AvatarURL,
		RealName:   u.RealName,
		IsVerified: u.IsVerified,
		Balance:    u.Balance,
		Status:     u.Status,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
