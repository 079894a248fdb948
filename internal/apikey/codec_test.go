// ABOUTME: Tests for secret generation and hashing
// ABOUTME: Verifies entropy independence, determinism, and digest shape

package apikey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret_Shape(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(secret, SecretPrefix))
	// 32 bytes base64url without padding is 43 characters
	assert.Len(t, secret, len(SecretPrefix)+43)
	assert.True(t, WellFormed(secret))
}

func TestGenerateSecret_Independent(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		secret, err := GenerateSecret()
		require.NoError(t, err)

		hash := HashSecret(secret)
		assert.False(t, seen[hash], "hash collision across generated secrets")
		seen[hash] = true
	}
}

func TestHashSecret_Deterministic(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)

	h1 := HashSecret(secret)
	h2 := HashSecret(secret)
	assert.Equal(t, h1, h2)
	// SHA-256 hex digest
	assert.Len(t, h1, 64)
}

func TestWellFormed(t *testing.T) {
	assert.False(t, WellFormed(""))
	assert.False(t, WellFormed("rg_"))
	assert.False(t, WellFormed("sk_abcdef"))
	assert.True(t, WellFormed("rg_abcdef"))
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqual("abc", "abc"))
	assert.False(t, ConstantTimeEqual("abc", "abd"))
	assert.False(t, ConstantTimeEqual("abc", "abcd"))
}
