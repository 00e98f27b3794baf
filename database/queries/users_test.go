package queries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("parol12345")
	require.NoError(t, err)
	assert.NotEqual(t, "parol12345", hash)
	assert.Greater(t, len(hash), 50)

	// Соль случайная: повторный хеш другой, но оба проходят проверку.
	hash2, err := HashPassword("parol12345")
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)

	assert.NoError(t, VerifyPassword("parol12345", hash))
	assert.NoError(t, VerifyPassword("parol12345", hash2))
}

func TestVerifyPasswordRejectsWrong(t *testing.T) {
	hash, err := HashPassword("parol12345")
	require.NoError(t, err)

	assert.Error(t, VerifyPassword("boshqa-parol", hash))
	assert.Error(t, VerifyPassword("parol12345", "не-bcrypt-хеш"))
}
