package credential

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"relay_chat/internal/cryptographic/encryption"
	"relay_chat/internal/cryptographic/kdf"
)

const envelopeVersion = 1

var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")

type (
	// ScryptParams are the key derivation costs recorded in each envelope.
	ScryptParams struct {
		N, R, P int
	}

	envelope struct {
		V      int    `json:"v"`
		Salt   []byte `json:"salt"`
		N      int    `json:"scrypt_N"`
		R      int    `json:"scrypt_r"`
		P      int    `json:"scrypt_p"`
		Cipher []byte `json:"cipher"`
	}
)

func DefaultScryptParams() ScryptParams { return ScryptParams{N: 1 << 15, R: 8, P: 1} }

func seal(passphrase string, raw []byte, params ScryptParams) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	key, err := kdf.Scrypt(passphrase, salt[:], params.N, params.R, params.P)
	if err != nil {
		return nil, err
	}
	sealed, err := encryption.AEADEncrypt(key, raw, salt[:])
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		V:      envelopeVersion,
		Salt:   salt[:],
		N:      params.N,
		R:      params.R,
		P:      params.P,
		Cipher: sealed,
	})
}

func open(passphrase string, b []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	if env.V > envelopeVersion {
		return nil, fmt.Errorf("unsupported key file version %d", env.V)
	}
	key, err := kdf.Scrypt(passphrase, env.Salt, env.N, env.R, env.P)
	if err != nil {
		return nil, err
	}
	pt, err := encryption.AEADDecrypt(key, env.Cipher, env.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}
