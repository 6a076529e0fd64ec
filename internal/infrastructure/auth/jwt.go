package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iho/possync/internal/domain"
)

var (
	// ErrInvalidToken is returned for malformed or wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for tokens past their expiry.
	ErrExpiredToken = errors.New("token expired")
)

// Claims carries the caller's sync scope.
type Claims struct {
	ShopID    *int64      `json:"shop_id,omitempty"`
	Role      domain.Role `json:"role"`
	ActorName string      `json:"actor_name"`
	ActorID   int64       `json:"actor_id"`
	jwt.RegisteredClaims
}

// Scope converts the claims into the visibility window used by the use cases.
func (c *Claims) Scope() domain.Scope {
	return domain.Scope{
		Role:   c.Role,
		ShopID: c.ShopID,
		Actor:  domain.Actor{Name: c.ActorName, ID: c.ActorID},
	}
}

// JWTManager manages JWT token creation and validation
type JWTManager struct {
	now           func() time.Time
	secretKey     []byte
	tokenDuration time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		now:           time.Now,
	}
}

// Generate issues a token for scope. Agent tokens must name a shop.
func (m *JWTManager) Generate(scope domain.Scope) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}

	now := m.now()
	subject := scope.Actor.Name
	if subject == "" {
		subject = fmt.Sprintf("%s-%d", scope.Role, scope.Actor.ID)
	}

	claims := Claims{
		ShopID:    scope.ShopID,
		Role:      scope.Role,
		ActorName: scope.Actor.Name,
		ActorID:   scope.Actor.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "possync",
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Verify verifies a JWT token and returns the claims
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if _, err := domain.ParseRole(string(claims.Role)); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
