package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_UniqueHex(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.Len(t, a, SecretBytes*2)
	assert.NotEqual(t, a, b)
}

func TestDigest_StableAndNotPlaintext(t *testing.T) {
	d := Digest("secret-value")
	assert.Equal(t, d, Digest("secret-value"))
	assert.NotEqual(t, d, Digest("secret-valuf"))
	assert.NotContains(t, d, "secret")
	assert.Len(t, d, 64)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "abcdefgh****6789", Mask("abcdefghijkl6789"))
	assert.Equal(t, "****", Mask("abcd"))
}
