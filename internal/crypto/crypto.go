package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	idSuffixLength = 9
	secretLength   = 32
	base36         = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// ErrDigestMismatch is returned by CompareDigest when the secret does not
// match.
var ErrDigestMismatch = errors.New("digest mismatch")

// GenerateEntryID returns "<unix-millis>-<9 base36 chars>".
func GenerateEntryID(now time.Time) string {
	suffix := make([]byte, idSuffixLength)
	max := big.NewInt(int64(len(base36)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		suffix[i] = base36[n.Int64()]
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + string(suffix)
}

// GenerateSecret returns a URL-safe random string, used for signing keys.
func GenerateSecret() string {
	bytes := make([]byte, secretLength)
	if _, err := rand.Read(bytes); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}

// Digest hashes a short secret with bcrypt. cost <= 0 means bcrypt.DefaultCost.
func Digest(secret string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("digest failed: %w", err)
	}
	return string(h), nil
}

// CompareDigest checks secret against a digest produced by Digest.
func CompareDigest(digest, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrDigestMismatch
	}
	return err
}
