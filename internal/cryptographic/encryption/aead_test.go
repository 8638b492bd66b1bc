package encryption_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay_chat/internal/cryptographic/encryption"
)

func TestAEADRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{3}, 32)
	sealed, err := encryption.AEADEncrypt(key, []byte("private key"), []byte("aad"))
	require.NoError(t, err)

	plain, err := encryption.AEADDecrypt(key, sealed, []byte("aad"))
	require.NoError(t, err)
	assert.Equal(t, []byte("private key"), plain)

	_, err = encryption.AEADDecrypt(key, sealed, []byte("other"))
	assert.Error(t, err)
	_, err = encryption.AEADDecrypt(bytes.Repeat([]byte{4}, 32), sealed, []byte("aad"))
	assert.Error(t, err)

	sealed[len(sealed)-1] ^= 1
	_, err = encryption.AEADDecrypt(key, sealed, []byte("aad"))
	assert.Error(t, err)

	_, err = encryption.AEADDecrypt(key, []byte("short"), nil)
	assert.Error(t, err)
	_, err = encryption.AEADEncrypt([]byte("short key"), nil, nil)
	assert.Error(t, err)
}
