package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPasscode(t *testing.T) {
	hash, err := HashPasscode("secret-123")
	require.NoError(t, err)

	ok, err := VerifyPasscode("secret-123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPasscode("Secret-123", hash)
	require.NoError(t, err)
	assert.False(t, ok, "passcodes are case sensitive")
}

func TestHashPasscode_UniqueSalts(t *testing.T) {
	h1, err := HashPasscode("same")
	require.NoError(t, err)
	h2, err := HashPasscode("same")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestVerifyPasscode_Malformed(t *testing.T) {
	_, err := VerifyPasscode("x", "plainbcrypt")
	assert.ErrorIs(t, err, ErrMalformedHash)
}
