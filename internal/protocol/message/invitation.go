package message

import (
	"bytes"
	"fmt"
	"math/big"

	"relay_chat/internal/cryptographic/dh"
	"relay_chat/internal/cryptographic/signature"
	"relay_chat/internal/errs"
	"relay_chat/internal/model"
	"relay_chat/internal/protocol/stream"
)

type (
	// Invitation is a decoded and verified invitation request or
	// acceptance.
	Invitation struct {
		ReceiverUsername string
		SenderAddress    string
		SenderUsername   string
		// SenderAlias is the alias the receiver must use to address the
		// sender.
		SenderAlias string
		PublicKey   []byte
		Component   *model.ReceivedComponent
		GroupID     int64
	}
)

func canonicalInvitation(username, alias string, public *big.Int) []byte {
	return []byte(fmt.Sprintf("%s.%s.%s", username, alias, public.String()))
}

// EncodeInvitation builds the invitation that offers component to receiver,
// signed with the key bound to receiver.MyAlias.
func EncodeInvitation(keys KeyStore, senderAddress string, component *model.SentComponent, receiver *model.Contact) ([]byte, error) {
	if !model.ValidateAddress(senderAddress) {
		return nil, fmt.Errorf("%q: %w", senderAddress, errs.ErrInvalidAddress)
	}
	priv, pub, err := keys.GetOrCreateKeypair(receiver.MyAlias)
	if err != nil {
		return nil, fmt.Errorf("keypair for %s: %w", receiver.MyAlias, err)
	}
	senderUsername := model.ParseUsername(senderAddress)
	sig, err := signature.RSASign(priv, canonicalInvitation(senderUsername, receiver.MyAlias, component.Public))
	if err != nil {
		return nil, fmt.Errorf("sign invitation: %w", err)
	}

	var buf bytes.Buffer
	w := stream.NewWriter(&buf)
	w.WriteString1(receiver.Username())
	w.WriteString1(senderAddress)
	w.WriteString1(senderUsername)
	w.WriteString1(receiver.MyAlias)
	w.WriteBytes2(pub)
	w.WriteBytes1(dh.Encode(component.Public))
	w.WriteBytes2(sig)
	w.WriteInt4(0)
	if err := w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeInvitation parses an invitation and verifies its signature against
// the public key it carries. The offered component always has serial 1.
func DecodeInvitation(data []byte) (*Invitation, error) {
	r := stream.NewReader(bytes.NewReader(data))
	inv := &Invitation{}
	var err error
	if inv.ReceiverUsername, err = r.ReadString1(); err != nil {
		return nil, fmt.Errorf("read receiver: %w", err)
	}
	if inv.SenderAddress, err = r.ReadString1(); err != nil {
		return nil, fmt.Errorf("read sender address: %w", err)
	}
	if inv.SenderUsername, err = r.ReadString1(); err != nil {
		return nil, fmt.Errorf("read sender username: %w", err)
	}
	if inv.SenderAlias, err = r.ReadString1(); err != nil {
		return nil, fmt.Errorf("read sender alias: %w", err)
	}
	if inv.PublicKey, err = r.ReadBytes2(); err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	value, err := r.ReadBytes1()
	if err != nil {
		return nil, fmt.Errorf("read dh value: %w", err)
	}
	sig, err := r.ReadBytes2()
	if err != nil {
		return nil, fmt.Errorf("read signature: %w", err)
	}
	if inv.GroupID, err = r.ReadInt4(); err != nil {
		return nil, fmt.Errorf("read group id: %w", err)
	}

	if !model.ValidateAddress(inv.SenderAddress) {
		return nil, fmt.Errorf("%q: %w", inv.SenderAddress, errs.ErrInvalidAddress)
	}
	inv.Component = model.NewReceivedComponent(1, dh.Decode(value))
	if !signature.RSAVerify(inv.PublicKey, canonicalInvitation(inv.SenderUsername, inv.SenderAlias, inv.Component.Public), sig) {
		return nil, fmt.Errorf("invitation from %s: %w", inv.SenderAddress, errs.ErrBadSignature)
	}
	return inv, nil
}

// InvitationReceiver returns the username an invitation is addressed to
// without verifying it.
func InvitationReceiver(data []byte) (string, error) {
	return stream.NewReader(bytes.NewReader(data)).ReadString1()
}
