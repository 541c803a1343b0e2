package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealer(t *testing.T) {
	s, err := NewSealer([]byte("cookie-secret"), "invweb cookies")
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		sealed, err := s.Seal("eyJhbGciOi.payload.sig", "auth_token")
		require.NoError(t, err)
		require.NotContains(t, sealed, "payload")

		plain, err := s.Open(sealed, "auth_token")
		require.NoError(t, err)
		require.Equal(t, "eyJhbGciOi.payload.sig", plain)
	})

	t.Run("nonces differ", func(t *testing.T) {
		a, err := s.Seal("same", "x")
		require.NoError(t, err)
		b, err := s.Seal("same", "x")
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})

	t.Run("aad binds the value to its name", func(t *testing.T) {
		sealed, err := s.Seal("refresh", "refresh_token")
		require.NoError(t, err)

		_, err = s.Open(sealed, "auth_token")
		require.ErrorIs(t, err, ErrOpen)
	})

	t.Run("same secret opens across instances", func(t *testing.T) {
		other, err := NewSealer([]byte("cookie-secret"), "invweb cookies")
		require.NoError(t, err)

		sealed, err := s.Seal("v", "n")
		require.NoError(t, err)
		plain, err := other.Open(sealed, "n")
		require.NoError(t, err)
		require.Equal(t, "v", plain)
	})

	t.Run("different secret fails", func(t *testing.T) {
		other, err := NewSealer([]byte("another"), "invweb cookies")
		require.NoError(t, err)

		sealed, err := s.Seal("v", "n")
		require.NoError(t, err)
		_, err = other.Open(sealed, "n")
		require.ErrorIs(t, err, ErrOpen)
	})

	t.Run("garbage", func(t *testing.T) {
		for _, in := range []string{"", "!!", "abcd", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"} {
			_, err := s.Open(in, "n")
			require.ErrorIs(t, err, ErrOpen)
		}
	})

	t.Run("empty secret is ephemeral", func(t *testing.T) {
		a, err := NewSealer(nil, "i")
		require.NoError(t, err)
		b, err := NewSealer(nil, "i")
		require.NoError(t, err)

		sealed, err := a.Seal("v", "n")
		require.NoError(t, err)
		_, err = b.Open(sealed, "n")
		require.ErrorIs(t, err, ErrOpen)
	})
}
