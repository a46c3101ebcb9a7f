package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestPasswordSealer_RoundTrip(t *testing.T) {
	s, err := NewPasswordSealer(testKey)
	require.NoError(t, err)

	for _, pw := range []string{"postgres", "p@ss w0rd;--", "a-very-long-password-with-many-characters-1234567890"} {
		sealed, err := s.Seal(pw)
		require.NoError(t, err)
		assert.NotEqual(t, pw, sealed)

		opened, err := s.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, pw, opened)
	}
}

func TestPasswordSealer_EmptyPasswordStaysEmpty(t *testing.T) {
	s, err := NewPasswordSealer(testKey)
	require.NoError(t, err)

	sealed, err := s.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	opened, err := s.Open("")
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestPasswordSealer_FreshNonces(t *testing.T) {
	s, err := NewPasswordSealer(testKey)
	require.NoError(t, err)

	a, err := s.Seal("same")
	require.NoError(t, err)
	b, err := s.Seal("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPasswordSealer_BadInput(t *testing.T) {
	_, err := NewPasswordSealer("tooshort")
	require.Error(t, err)

	_, err = NewPasswordSealer("0123456789abcdef")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be 32 bytes")

	s, err := NewPasswordSealer(testKey)
	require.NoError(t, err)

	_, err = s.Open("zz")
	require.Error(t, err)

	_, err = s.Open("abcd")
	require.ErrorIs(t, err, ErrCiphertextTooShort)

	other, err := NewPasswordSealer("fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210")
	require.NoError(t, err)
	sealed, err := other.Seal("secret")
	require.NoError(t, err)
	_, err = s.Open(sealed)
	require.Error(t, err)
}
