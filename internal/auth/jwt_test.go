package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	key, err := GenerateKey(RoleAnon, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}

	claims, err := ParseKey(key, secret)
	if err != nil {
		t.Fatalf("ParseKey error: %v", err)
	}
	if claims.Role != RoleAnon {
		t.Fatalf("role mismatch: got %q want %q", claims.Role, RoleAnon)
	}
}

func TestGenerateKey_NoExpiry(t *testing.T) {
	t.Parallel()

	key, err := GenerateKey(RoleService, []byte("s"), 0)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	claims, err := ParseKey(key, []byte("s"))
	if err != nil {
		t.Fatalf("ParseKey error: %v", err)
	}
	if claims.ExpiresAt != nil {
		t.Fatalf("expected no expiry, got %v", claims.ExpiresAt)
	}
}

func TestParseKey_Expired(t *testing.T) {
	t.Parallel()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Role: RoleAnon,
	}
	key, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}

	_, err = ParseKey(key, []byte("secret"))
	if !errors.Is(err, ErrExpiredKey) {
		t.Fatalf("expected ErrExpiredKey, got %v", err)
	}
}

func TestParseKey_WrongSecret(t *testing.T) {
	t.Parallel()

	key, err := GenerateKey(RoleAnon, []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}

	_, err = ParseKey(key, []byte("wrong-secret"))
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestParseKey_UnknownRole(t *testing.T) {
	t.Parallel()

	key, err := GenerateKey(Role("admin"), []byte("k"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	if _, err := ParseKey(key, []byte("k")); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestParseKey_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := ParseKey("not.a.jwt", []byte("k")); err == nil {
		t.Fatalf("expected error for malformed key, got nil")
	}
}
