package kdf

import (
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// KeySize is the length of derived keys, sized for the AEAD sealing key
// files.
const KeySize = chacha20poly1305.KeySize

// Scrypt stretches a passphrase into a KeySize key. n, r and p are the
// scrypt cost parameters and are stored next to whatever the key seals.
func Scrypt(passphrase string, salt []byte, n, r, p int) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, n, r, p, KeySize)
}
