package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher(4)

	hash, err := hasher.Hash("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)

	assert.NoError(t, hasher.Compare(hash, "correct horse battery"))
	assert.Error(t, hasher.Compare(hash, "wrong password"))
}

func TestHashRejectsShortPasswords(t *testing.T) {
	hasher := NewBcryptHasher(4)
	_, err := hasher.Hash("short")
	assert.Error(t, err)
}

func TestGenerateTempPassword(t *testing.T) {
	pw, err := GenerateTempPassword(12)
	require.NoError(t, err)
	assert.Len(t, pw, 12)
	for _, r := range pw {
		assert.True(t, strings.ContainsRune(tempPasswordAlphabet, r))
	}

	other, err := GenerateTempPassword(12)
	require.NoError(t, err)
	assert.NotEqual(t, pw, other)
}

func TestGenerateTempPasswordEnforcesMinimum(t *testing.T) {
	pw, err := GenerateTempPassword(2)
	require.NoError(t, err)
	assert.Len(t, pw, MinPasswordLen)
}
