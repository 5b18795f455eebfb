package crypto

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateEntryID_Shape(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := GenerateEntryID(now)

	assert.Regexp(t, regexp.MustCompile(`^1700000000123-[0-9a-z]{9}$`), id)
	assert.NotEqual(t, id, GenerateEntryID(now))
}

func TestGenerateSecret_Unique(t *testing.T) {
	a, b := GenerateSecret(), GenerateSecret()
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}

func TestDigest_RoundTrip(t *testing.T) {
	d, err := Digest("123456", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "123456", d)

	assert.NoError(t, CompareDigest(d, "123456"))
	assert.ErrorIs(t, CompareDigest(d, "654321"), ErrDigestMismatch)
}

func TestCompareDigest_Malformed(t *testing.T) {
	err := CompareDigest("not-a-digest", "123456")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDigestMismatch)
}
