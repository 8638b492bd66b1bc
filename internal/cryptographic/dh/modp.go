package dh

import (
	"crypto/rand"
	"math/big"
)

// The group is fixed network-wide and never negotiated. The prime is ~99 bits,
// far below what finite-field Diffie-Hellman needs today; it is kept because
// every deployed peer derives keys from it.
var (
	P = mustInt("416064700201658306196320137931")
	G = big.NewInt(2)
)

// Private exponents are drawn uniformly from [2, 10^PrivateDigits).
const PrivateDigits = 620

// KeySize is the AES-256 key length derived from a shared value.
const KeySize = 32

var exponentBound = new(big.Int).Exp(big.NewInt(10), big.NewInt(PrivateDigits), nil)

func mustInt(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("dh: bad constant " + s)
	}
	return v
}

// NewPrivateExponent draws a fresh private exponent.
func NewPrivateExponent() (*big.Int, error) {
	for {
		x, err := rand.Int(rand.Reader, exponentBound)
		if err != nil {
			return nil, err
		}
		if x.Cmp(big.NewInt(1)) > 0 {
			return x, nil
		}
	}
}

// PublicValue returns g^private mod p.
func PublicValue(private *big.Int) *big.Int {
	return new(big.Int).Exp(G, private, P)
}

// SharedValue returns peerPublic^private mod p.
func SharedValue(peerPublic, private *big.Int) *big.Int {
	return new(big.Int).Exp(peerPublic, private, P)
}

// Encode renders a non-negative value the way deployed peers put it on the
// wire: little-endian two's complement, minimal length, with a trailing zero
// byte when the top bit of the last byte would otherwise read as a sign.
func Encode(v *big.Int) []byte {
	be := v.Bytes()
	if len(be) == 0 {
		return []byte{0}
	}
	out := make([]byte, len(be), len(be)+1)
	for i, b := range be {
		out[len(be)-1-i] = b
	}
	if out[len(out)-1]&0x80 != 0 {
		out = append(out, 0)
	}
	return out
}

// Decode is the inverse of Encode. Values are read as unsigned.
func Decode(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i, c := range b {
		be[len(b)-1-i] = c
	}
	return new(big.Int).SetBytes(be)
}

// Key turns a shared value into an AES-256 key: its wire encoding copied into
// a zeroed 32 byte buffer.
func Key(shared *big.Int) []byte {
	key := make([]byte, KeySize)
	copy(key, Encode(shared))
	return key
}
