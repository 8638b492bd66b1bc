package encryption_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay_chat/internal/cryptographic/encryption"
)

func TestCBCRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	for _, n := range []int{0, 1, 15, 16, 17, 1000} {
		plain := bytes.Repeat([]byte{'x'}, n)
		iv, ct, err := encryption.CBCEncrypt(key, plain)
		require.NoError(t, err)
		assert.Len(t, iv, encryption.IVSize)
		assert.Zero(t, len(ct)%16)
		assert.Greater(t, len(ct), n)

		got, err := encryption.CBCDecrypt(key, iv, ct)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestCBCFreshIVPerMessage(t *testing.T) {
	key := bytes.Repeat([]byte{1}, 32)
	iv1, ct1, err := encryption.CBCEncrypt(key, []byte("same"))
	require.NoError(t, err)
	iv2, ct2, err := encryption.CBCEncrypt(key, []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, iv1, iv2)
	assert.NotEqual(t, ct1, ct2)
}

func TestCBCWrongKeyFailsOrGarbles(t *testing.T) {
	iv, ct, err := encryption.CBCEncrypt(bytes.Repeat([]byte{1}, 32), []byte("attack at dawn"))
	require.NoError(t, err)
	got, err := encryption.CBCDecrypt(bytes.Repeat([]byte{2}, 32), iv, ct)
	if err == nil {
		assert.NotEqual(t, []byte("attack at dawn"), got)
	}
}

func TestCBCRejectsMalformedInput(t *testing.T) {
	key := bytes.Repeat([]byte{1}, 32)
	_, err := encryption.CBCDecrypt(key, make([]byte, 8), make([]byte, 16))
	assert.Error(t, err)
	_, err = encryption.CBCDecrypt(key, make([]byte, 16), make([]byte, 15))
	assert.Error(t, err)
	_, err = encryption.CBCDecrypt(key, make([]byte, 16), nil)
	assert.Error(t, err)
}
