package auth

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/booking-service/internal/domain"
)

// Fixed issuer and audiences bound into every signed token.
const (
	Issuer               = "jz-service"
	AccessTokenAudience  = "access-token-audience"
	RefreshTokenAudience = "refresh-token-audience"
)

// DefaultAccessTokenTTL is used when a TokenManager is built without a lifetime.
const DefaultAccessTokenTTL = time.Hour

// Verification failures. They are for logging only; callers see a single unauthorized outcome.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrInvalidIssuer    = errors.New("invalid token issuer")
	ErrInvalidAudience  = errors.New("invalid token audience")
	ErrWrongTokenType   = errors.New("wrong token type")
)

// Claims describes the JWT payload. The identity fields are a snapshot taken at issuance.
type Claims struct {
	UserID    int64            `json:"user_id"`
	Username  string           `json:"username"`
	UserType  domain.UserType  `json:"user_type"`
	TokenType domain.TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// AudienceFor returns the audience bound to tokens of the given type.
func AudienceFor(tokenType domain.TokenType) string {
	if tokenType == domain.TokenTypeRefresh {
		return RefreshTokenAudience
	}
	return AccessTokenAudience
}

// NewClaims builds claims for user valid from now until now+ttl.
func NewClaims(user *domain.User, tokenType domain.TokenType, now time.Time, ttl time.Duration) *Claims {
	issuedAt := jwt.NewNumericDate(now)
	return &Claims{
		UserID:    user.ID,
		Username:  user.Username,
		UserType:  user.UserType,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{AudienceFor(tokenType)},
			IssuedAt:  issuedAt,
			NotBefore: issuedAt,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

// Sign serializes claims and signs them with HS256.
func Sign(claims *Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, lifetime, issuer and audience of tokenStr and returns its claims.
// When expected is non-empty the token type and its audience must match it as well.
func Verify(tokenStr string, secret []byte, expected domain.TokenType) (*Claims, error) {
	return verifyAt(tokenStr, secret, expected, time.Now)
}

func verifyAt(tokenStr string, secret []byte, expected domain.TokenType, now func() time.Time) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(now),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !parsed.Valid {
		return nil, ErrMalformedToken
	}

	if !slices.ContainsFunc(claims.Audience, isRecognizedAudience) {
		return nil, ErrInvalidAudience
	}
	if expected != "" {
		if claims.TokenType != expected {
			return nil, ErrWrongTokenType
		}
		if !slices.Contains(claims.Audience, AudienceFor(expected)) {
			return nil, ErrInvalidAudience
		}
	}
	return claims, nil
}

func isRecognizedAudience(aud string) bool {
	return aud == AccessTokenAudience || aud == RefreshTokenAudience
}

func classifyParseError(err error) error {
	var kind error
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		kind = ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		kind = ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		kind = ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		kind = ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		kind = ErrInvalidIssuer
	default:
		kind = ErrMalformedToken
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// TokenManager handles issuing and validating access tokens with a fixed secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the access token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// GenerateAccessToken signs an access token for user and returns it with its expiry.
func (tm *TokenManager) GenerateAccessToken(user *domain.User) (string, time.Time, error) {
	claims := NewClaims(user, domain.TokenTypeAccess, tm.now(), tm.ttl)
	token, err := Sign(claims, tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// ParseToken validates tokenStr and returns its claims.
func (tm *TokenManager) ParseToken(tokenStr string, expected domain.TokenType) (*Claims, error) {
	return verifyAt(tokenStr, tm.secret, expected, tm.now)
}
