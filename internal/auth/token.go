package auth

import (
	"errors"
	"time"

	"github.com/eventmgr/apiserver/config"
	"github.com/eventmgr/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token fails signature or
	// structural validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a token's expiry has passed.
	ErrExpiredToken = errors.New("token has expired")
)

// Claims is the signed claim set embedded in every issued token.
// It carries enough identity for role-gated routing without a
// server-side session store.
type Claims struct {
	UserID    int    `json:"user_id"`
	IsManager bool   `json:"is_manager"`
	Name      string `json:"name"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies signed identity tokens. All signing
// material comes from the AuthConfig handed to the constructor; there
// are no ambient globals.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenManager constructs a TokenManager from auth configuration.
func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		issuer: cfg.Issuer,
	}
}

// Issue signs a token for the given user with the configured expiry window.
func (m *TokenManager) Issue(user types.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    user.ID,
		IsManager: user.IsManager,
		Name:      user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks signature and expiry and returns the decoded claims.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.UserID < 1 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TTL returns the configured expiry window.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// DecodeUnverified parses a token's claims without checking the
// signature. It is for client-side UI gating only; every privileged
// server operation re-verifies with Verify.
func DecodeUnverified(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiredToken
	}
	if claims.UserID < 1 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
