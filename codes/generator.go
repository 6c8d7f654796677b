// Package codes generates one-time verification codes and hashes them so they
// can travel inside a client-held token without being revealed.
package codes

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/layer-3/twofa/core"
)

const (
	// DefaultLength is the number of characters in a verification code
	DefaultLength = 7

	// DefaultAlphabet contains the characters a verification code is drawn from
	DefaultAlphabet = "0123456789"

	// NonceAlphabet is used for nonces and hash salts
	NonceAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// RandomString draws length characters uniformly, with replacement, from alphabet
// using crypto/rand. big.Int sampling avoids modulo bias.
func RandomString(length int, alphabet string) (string, error) {
	chars := []rune(alphabet)
	if len(chars) == 0 {
		return "", fmt.Errorf("empty alphabet")
	}

	max := big.NewInt(int64(len(chars)))
	out := make([]rune, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random: %w", err)
		}
		out[i] = chars[n.Int64()]
	}

	return string(out), nil
}

// Generator produces verification codes of a fixed length
type Generator struct {
	length   int
	alphabet string
}

// NewGenerator creates a code generator. An empty alphabet or a non-positive
// length is a configuration error.
func NewGenerator(length int, alphabet string) (*Generator, error) {
	if alphabet == "" {
		return nil, &core.ConfigError{Field: "CODE_CHARACTERS", Reason: "must not be empty"}
	}
	if length <= 0 {
		return nil, &core.ConfigError{Field: "CODE_LENGTH", Reason: "must be positive"}
	}

	return &Generator{length: length, alphabet: alphabet}, nil
}

// Generate returns a new random verification code
func (g *Generator) Generate() (string, error) {
	return RandomString(g.length, g.alphabet)
}

// Length returns the configured code length
func (g *Generator) Length() int {
	return g.length
}
