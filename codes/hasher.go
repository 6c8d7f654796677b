package codes

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Algorithm is the identifier prefixed to every encoded hash
	Algorithm = "pbkdf2_sha256"

	// DefaultIterations is the PBKDF2 work factor used when none is configured
	DefaultIterations = 260000

	// MinNonceLength is the shortest nonce a caller may pass to Hash
	MinNonceLength = 10

	saltLength = 22
	keyLength  = 32
)

// Hasher hashes verification codes with PBKDF2-SHA256.
//
// The hashed input is code + nonce + extension secret. The salt is generated
// by the hasher itself and stored in the encoded result, which has the form
// pbkdf2_sha256$<iterations>$<salt>$<base64 hash>.
type Hasher struct {
	iterations int
}

// NewHasher creates a Hasher, DefaultIterations is used if iterations <= 0
func NewHasher(iterations int) *Hasher {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Hasher{iterations: iterations}
}

// Hash returns the encoded salted hash of the extended code
func (h *Hasher) Hash(code, nonce, extension string) (string, error) {
	if len(nonce) < MinNonceLength {
		return "", fmt.Errorf("nonce must be at least %d characters", MinNonceLength)
	}

	salt, err := RandomString(saltLength, NonceAlphabet)
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	return encode(extend(code, nonce, extension), salt, h.iterations), nil
}

// Verify reports whether code matches the encoded hash. A malformed hash is a
// mismatch, never an error.
func (h *Hasher) Verify(code, nonce, extension, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != Algorithm {
		return false
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}

	candidate := encode(extend(code, nonce, extension), parts[2], iterations)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(encoded)) == 1
}

func extend(code, nonce, extension string) string {
	return code + nonce + extension
}

func encode(password, salt string, iterations int) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLength, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s", Algorithm, iterations, salt, base64.StdEncoding.EncodeToString(key))
}
