package model

import (
	"math/big"

	"relay_chat/internal/cryptographic/dh"
)

type (
	// SecretComponent is one half of a DH exchange, named by its 1-based
	// serial in its owner's log. It is either a *SentComponent or a
	// *ReceivedComponent.
	SecretComponent interface {
		ComponentSerial() int64
		PublicValue() *big.Int
		component()
	}

	// SentComponent is a component generated locally; it keeps the private
	// exponent.
	SentComponent struct {
		Serial  int64
		Public  *big.Int
		Private *big.Int
	}

	// ReceivedComponent is a peer's component; only the public value is
	// known.
	ReceivedComponent struct {
		Serial int64
		Public *big.Int
	}

	// Secret is never stored. It pairs a local component with a peer's.
	Secret struct {
		My    *SentComponent
		Other *ReceivedComponent
	}
)

var (
	_ SecretComponent = (*SentComponent)(nil)
	_ SecretComponent = (*ReceivedComponent)(nil)
)

func NewSentComponent(serial int64) (*SentComponent, error) {
	private, err := dh.NewPrivateExponent()
	if err != nil {
		return nil, err
	}
	return &SentComponent{
		Serial:  serial,
		Public:  dh.PublicValue(private),
		Private: private,
	}, nil
}

func NewReceivedComponent(serial int64, public *big.Int) *ReceivedComponent {
	return &ReceivedComponent{Serial: serial, Public: public}
}

func (c *SentComponent) ComponentSerial() int64 { return c.Serial }
func (c *SentComponent) PublicValue() *big.Int  { return c.Public }
func (c *SentComponent) component()             {}

func (c *ReceivedComponent) ComponentSerial() int64 { return c.Serial }
func (c *ReceivedComponent) PublicValue() *big.Int  { return c.Public }
func (c *ReceivedComponent) component()             {}

// Value is other.Public ^ my.Private mod p. Both components are assumed to
// belong to the same contact.
func (s Secret) Value() *big.Int {
	return dh.SharedValue(s.Other.Public, s.My.Private)
}

// Key is the AES-256 key derived from Value.
func (s Secret) Key() []byte {
	return dh.Key(s.Value())
}
