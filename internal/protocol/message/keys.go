// Package message encodes and decodes the payloads exchanged through the
// relay: invitations, chat messages, the message index and alias lists.
package message

import "crypto/rsa"

type (
	// KeyStore hands out the signing key bound to one of our aliases,
	// creating it on first use. The returned public key is PEM encoded.
	KeyStore interface {
		GetOrCreateKeypair(alias string) (*rsa.PrivateKey, []byte, error)
	}
)

const (
	// ChatFormatVersion is the outer chat message version.
	ChatFormatVersion = 1
	// DataFormatVersion is the version of the sealed payload.
	DataFormatVersion = 1
)
