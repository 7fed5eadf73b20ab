package secretbox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := New([]byte("0123456789abcdef-secret"), "test")
	require.NoError(t, err)

	sealed, err := box.Seal([]byte("hello keys"), []byte("v1"))
	require.NoError(t, err)
	require.NotContains(t, string(sealed), "hello keys")

	plain, err := box.Open(sealed, []byte("v1"))
	require.NoError(t, err)
	require.Equal(t, "hello keys", string(plain))
}

func TestOpenRejectsTamperingAndWrongSecret(t *testing.T) {
	box, err := New([]byte("0123456789abcdef-secret"), "test")
	require.NoError(t, err)
	sealed, err := box.Seal([]byte("payload"), nil)
	require.NoError(t, err)

	tampered := append([]byte{}, sealed...)
	tampered[len(tampered)-1] ^= 0xff
	_, err = box.Open(tampered, nil)
	require.ErrorIs(t, err, ErrOpen)

	_, err = box.Open(sealed, []byte("other-aad"))
	require.ErrorIs(t, err, ErrOpen)

	other, err := New([]byte("another-secret-of-16+"), "test")
	require.NoError(t, err)
	_, err = other.Open(sealed, nil)
	require.ErrorIs(t, err, ErrOpen)

	sameSecretOtherInfo, err := New([]byte("0123456789abcdef-secret"), "other")
	require.NoError(t, err)
	_, err = sameSecretOtherInfo.Open(sealed, nil)
	require.ErrorIs(t, err, ErrOpen)

	_, err = box.Open([]byte("short"), nil)
	require.ErrorIs(t, err, ErrOpen)
}

func TestNewRejectsShortSecret(t *testing.T) {
	_, err := New([]byte("short"), "test")
	require.ErrorIs(t, err, ErrSecretTooShort)
}
