package codes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIterations = 1000
	testNonce      = "n0nceN0nce"
	testExtension  = "extension-secret"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(testIterations)

	hashed, err := h.Hash("1234567", testNonce, testExtension)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hashed, Algorithm+"$1000$"))
	assert.NotContains(t, hashed, "1234567")
	assert.True(t, h.Verify("1234567", testNonce, testExtension, hashed))
}

func TestHasher_VerifyMismatch(t *testing.T) {
	h := NewHasher(testIterations)

	hashed, err := h.Hash("1234567", testNonce, testExtension)
	require.NoError(t, err)

	tests := []struct {
		name      string
		code      string
		nonce     string
		extension string
		encoded   string
	}{
		{"Different code", "7654321", testNonce, testExtension, hashed},
		{"Different nonce", "1234567", "otherNonce1", testExtension, hashed},
		{"Different extension", "1234567", testNonce, "other", hashed},
		{"Empty hash", "1234567", testNonce, testExtension, ""},
		{"Wrong algorithm", "1234567", testNonce, testExtension, strings.Replace(hashed, Algorithm, "md5", 1)},
		{"Bad iterations", "1234567", testNonce, testExtension, "pbkdf2_sha256$x$salt$hash"},
		{"Too few parts", "1234567", testNonce, testExtension, "pbkdf2_sha256$1000$salt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, h.Verify(tt.code, tt.nonce, tt.extension, tt.encoded))
		})
	}
}

func TestHasher_SaltedPerCall(t *testing.T) {
	h := NewHasher(testIterations)

	a, err := h.Hash("1234567", testNonce, testExtension)
	require.NoError(t, err)
	b, err := h.Hash("1234567", testNonce, testExtension)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("1234567", testNonce, testExtension, a))
	assert.True(t, h.Verify("1234567", testNonce, testExtension, b))
}

func TestHasher_ShortNonce(t *testing.T) {
	_, err := NewHasher(testIterations).Hash("1234567", "short", testExtension)
	assert.Error(t, err)
}

func TestHasher_VerifyUsesEncodedIterations(t *testing.T) {
	hashed, err := NewHasher(testIterations).Hash("42", testNonce, testExtension)
	require.NoError(t, err)

	// A hasher with a different work factor still verifies older hashes
	assert.True(t, NewHasher(2000).Verify("42", testNonce, testExtension, hashed))
}

func TestNewHasher_Default(t *testing.T) {
	assert.Equal(t, DefaultIterations, NewHasher(0).iterations)
}
