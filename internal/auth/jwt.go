// Package auth issues and checks the API keys clients present to the
// backend. A key is an HS256 JWT carrying a role.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAnon    Role = "anon"
	RoleService Role = "service"
)

var (
	ErrInvalidKey  = errors.New("invalid api key")
	ErrExpiredKey  = errors.New("api key expired")
	ErrUnknownRole = errors.New("unknown role")
)

type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAnon, RoleService:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// GenerateKey signs a key for role. ttl <= 0 means the key never expires.
func GenerateKey(role Role, secretKey []byte, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   "life-tape",
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey)
}

// ParseKey validates the signature, expiry and role of a key.
func ParseKey(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredKey
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if !token.Valid {
		return nil, ErrInvalidKey
	}
	if _, err := ParseRole(string(claims.Role)); err != nil {
		return nil, err
	}

	return claims, nil
}
