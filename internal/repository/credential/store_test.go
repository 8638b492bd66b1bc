package credential_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay_chat/internal/cryptographic/signature"
	"relay_chat/internal/repository/credential"
)

var fastScrypt = credential.WithScryptParams(credential.ScryptParams{N: 1 << 10, R: 8, P: 1})

func newStore(t *testing.T, dir, passphrase string) *credential.FileStore {
	t.Helper()
	s, err := credential.NewFileStore(dir, passphrase, credential.WithKeyBits(1024), fastScrypt)
	require.NoError(t, err)
	return s
}

func TestGetOrCreateIsStable(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir, "secret")

	priv1, pub1, err := s.GetOrCreateKeypair("ALIASONE")
	require.NoError(t, err)
	priv2, pub2, err := s.GetOrCreateKeypair("ALIASONE")
	require.NoError(t, err)
	assert.Same(t, priv1, priv2)
	assert.Equal(t, pub1, pub2)

	_, other, err := s.GetOrCreateKeypair("ALIASTWO")
	require.NoError(t, err)
	assert.NotEqual(t, pub1, other)

	sig, err := signature.RSASign(priv1, []byte("payload"))
	require.NoError(t, err)
	assert.True(t, signature.RSAVerify(pub1, []byte("payload"), sig))
}

func TestKeysSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	priv, _, err := newStore(t, dir, "secret").GetOrCreateKeypair("ALIAS")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "ALIAS.key.enc"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, _, err := newStore(t, dir, "secret").GetOrCreateKeypair("ALIAS")
	require.NoError(t, err)
	assert.True(t, priv.Equal(again))
}

func TestWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	_, _, err := newStore(t, dir, "secret").GetOrCreateKeypair("ALIAS")
	require.NoError(t, err)

	_, _, err = newStore(t, dir, "guess").GetOrCreateKeypair("ALIAS")
	assert.ErrorIs(t, err, credential.ErrWrongPassphrase)
}

func TestDeleteAndRejectPathAliases(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir, "secret")
	_, pub, err := s.GetOrCreateKeypair("ALIAS")
	require.NoError(t, err)
	require.NoError(t, s.Delete("ALIAS"))
	require.NoError(t, s.Delete("ALIAS"))

	_, fresh, err := s.GetOrCreateKeypair("ALIAS")
	require.NoError(t, err)
	assert.NotEqual(t, pub, fresh)

	_, _, err = s.GetOrCreateKeypair("../escape")
	assert.Error(t, err)
	_, _, err = s.GetOrCreateKeypair("")
	assert.Error(t, err)
}
