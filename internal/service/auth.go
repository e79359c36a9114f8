package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"heating_bridge/internal/config"
)

// Domain errors for dashboard auth flows.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// AuthService signs the configured dashboard user in with a JWT. There
// is no user store: the single credential lives in config as a bcrypt
// hash.
type AuthService struct {
	cfg config.Dashboard
}

func NewAuthService(cfg config.Dashboard) *AuthService {
	return &AuthService{cfg: cfg}
}

// Claims defines the dashboard JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// SignIn validates the credential against the configured bcrypt hash
// and returns a signed JWT.
func (s *AuthService) SignIn(username, password string) (string, error) {
	if username != s.cfg.Username {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	ttl := time.Duration(s.cfg.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: username,
	})
	return token.SignedString([]byte(s.cfg.SigningKey))
}

// ParseToken validates a JWT and returns the username it was issued to.
func (s *AuthService) ParseToken(accessToken string) (string, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.SigningKey), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Username, nil
}
