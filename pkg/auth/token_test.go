package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecureRandomToken(t *testing.T) {
	tok, err := GenerateSecureRandomToken(16)
	require.NoError(t, err)
	assert.Len(t, tok, 32)

	def, err := GenerateSecureRandomToken(0)
	require.NoError(t, err)
	assert.Len(t, def, DefaultTokenBytes*2)

	other, err := GenerateSecureRandomToken(16)
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}

func TestHashToken(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashToken("abc"))
}

func TestTokenMatchesHash(t *testing.T) {
	stored := HashToken("secret-token")

	assert.True(t, TokenMatchesHash("secret-token", stored))
	assert.False(t, TokenMatchesHash("secret-tokeN", stored))
	assert.False(t, TokenMatchesHash("short", stored))
	assert.False(t, TokenMatchesHash("", stored))
	assert.False(t, TokenMatchesHash("secret-token", ""))
}
