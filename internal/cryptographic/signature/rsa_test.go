package signature_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay_chat/internal/cryptographic/signature"
)

func TestRSASignVerify(t *testing.T) {
	priv, err := signature.NewRSAKeypair(1024)
	require.NoError(t, err)
	pub, err := signature.MarshalPublicKey(&priv.PublicKey)
	require.NoError(t, err)

	msg := []byte("alice.ABCDEF.12345")
	sig, err := signature.RSASign(priv, msg)
	require.NoError(t, err)
	assert.True(t, signature.RSAVerify(pub, msg, sig))

	for i := range msg {
		flipped := append([]byte(nil), msg...)
		flipped[i] ^= 0x01
		assert.False(t, signature.RSAVerify(pub, flipped, sig), "flipped byte %d", i)
	}
}

func TestRSAVerifyWrongKey(t *testing.T) {
	a, err := signature.NewRSAKeypair(1024)
	require.NoError(t, err)
	b, err := signature.NewRSAKeypair(1024)
	require.NoError(t, err)
	pubB, err := signature.MarshalPublicKey(&b.PublicKey)
	require.NoError(t, err)

	sig, err := signature.RSASign(a, []byte("hello"))
	require.NoError(t, err)
	assert.False(t, signature.RSAVerify(pubB, []byte("hello"), sig))
	assert.False(t, signature.RSAVerify([]byte("not a key"), []byte("hello"), sig))
}

func TestPublicKeyPEMRoundTrip(t *testing.T) {
	priv, err := signature.NewRSAKeypair(1024)
	require.NoError(t, err)
	pem, err := signature.MarshalPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pub, err := signature.ParsePublicKey(pem)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))
}
