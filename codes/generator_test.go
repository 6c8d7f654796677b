package codes

import (
	"strings"
	"testing"

	"github.com/layer-3/twofa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator(t *testing.T) {
	t.Run("Empty alphabet", func(t *testing.T) {
		_, err := NewGenerator(DefaultLength, "")
		assert.ErrorIs(t, err, core.ErrInvalidConfig)
	})

	t.Run("Zero length", func(t *testing.T) {
		_, err := NewGenerator(0, DefaultAlphabet)
		assert.ErrorIs(t, err, core.ErrInvalidConfig)
	})
}

func TestGenerator_Generate(t *testing.T) {
	gen, err := NewGenerator(DefaultLength, DefaultAlphabet)
	require.NoError(t, err)
	assert.Equal(t, DefaultLength, gen.Length())

	for i := 0; i < 50; i++ {
		code, err := gen.Generate()
		require.NoError(t, err)
		assert.Len(t, code, DefaultLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(DefaultAlphabet, c), "unexpected character %q", c)
		}
	}
}

func TestRandomString(t *testing.T) {
	s, err := RandomString(10, "x")
	require.NoError(t, err)
	assert.Equal(t, "xxxxxxxxxx", s)

	_, err = RandomString(5, "")
	assert.Error(t, err)

	// Multi-byte alphabets are drawn by character
	s, err = RandomString(4, "äö")
	require.NoError(t, err)
	assert.Len(t, []rune(s), 4)

	a, _ := RandomString(32, NonceAlphabet)
	b, _ := RandomString(32, NonceAlphabet)
	assert.NotEqual(t, a, b)
}
