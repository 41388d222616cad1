package helpers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/statlerhq/accounts/pkg/apperrors"
)

func TestCheckPasswordLength(t *testing.T) {
	assert.NoError(t, CheckPasswordLength("12345678"))
	assert.NoError(t, CheckPasswordLength("a much longer passphrase"))

	err := CheckPasswordLength("1234567")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Equal(t, "Your password must be at least 8 characters long.", apperrors.MessageOf(err))
}

func TestCheckPasswordLengthCountsCharacters(t *testing.T) {
	// 5 characters, 10 bytes: still too short.
	err := CheckPasswordLength("ñññññ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	// 8 characters is enough regardless of encoding width.
	assert.NoError(t, CheckPasswordLength("ññññññññ"))
	assert.NoError(t, CheckPasswordLength("пароль78"))
}

func TestHashAndVerify(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("thundergun0")
	require.NoError(t, err)
	assert.NotEqual(t, "thundergun0", hash)

	assert.True(t, h.Verify("thundergun0", hash))
	assert.False(t, h.Verify("thundergun1", hash))
	assert.False(t, h.Verify("Thundergun0", hash))
}

func TestHashIsSalted(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	a, err := h.Hash("thundergun0")
	require.NoError(t, err)
	b, err := h.Hash("thundergun0")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyMalformedHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	assert.False(t, h.Verify("whatever", "not-a-bcrypt-hash"))
	assert.False(t, h.Verify("whatever", ""))
}

func TestNewPasswordHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).Cost)
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(99).Cost)
	assert.Equal(t, bcrypt.MinCost, NewPasswordHasher(bcrypt.MinCost).Cost)
}
