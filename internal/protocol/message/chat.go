package message

import (
	"bytes"
	"fmt"

	"relay_chat/internal/cryptographic/dh"
	"relay_chat/internal/cryptographic/encryption"
	"relay_chat/internal/cryptographic/signature"
	"relay_chat/internal/errs"
	"relay_chat/internal/model"
	"relay_chat/internal/protocol/stream"
)

type (
	// ContactFinder resolves the alias a chat message is addressed to.
	ContactFinder interface {
		FindByMyAlias(alias string) *model.Contact
	}

	// Chat is a decoded chat message.
	Chat struct {
		Sender *model.Contact
		Secret model.Secret
		// Data is the new history entry. Its component is the one the
		// sender offered for future messages.
		Data *model.MessageData
	}
)

// EncodeChat seals data for receiver under secret. data.Component is the
// component offered alongside the message.
func EncodeChat(keys KeyStore, receiver *model.Contact, secret model.Secret, data *model.MessageData) ([]byte, error) {
	mime, err := data.ContentType.MIME()
	if err != nil {
		return nil, err
	}

	var plain bytes.Buffer
	pw := stream.NewWriter(&plain)
	pw.WriteInt1(DataFormatVersion)
	pw.WriteBytes1(dh.Encode(data.Component.PublicValue()))
	pw.WriteInt4(data.Component.ComponentSerial())
	pw.WriteInt4(0)
	pw.WriteString1(mime)
	pw.WriteBytes4(data.Content)
	if err := pw.Err(); err != nil {
		return nil, err
	}

	iv, ciphertext, err := encryption.CBCEncrypt(secret.Key(), plain.Bytes())
	if err != nil {
		return nil, err
	}
	var body bytes.Buffer
	bw := stream.NewWriter(&body)
	bw.WriteBytes4(ciphertext)
	if err := bw.Err(); err != nil {
		return nil, err
	}

	priv, _, err := keys.GetOrCreateKeypair(receiver.MyAlias)
	if err != nil {
		return nil, fmt.Errorf("keypair for %s: %w", receiver.MyAlias, err)
	}
	sig, err := signature.RSASign(priv, body.Bytes())
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}

	var buf bytes.Buffer
	w := stream.NewWriter(&buf)
	w.WriteInt1(ChatFormatVersion)
	w.WriteString1(receiver.Alias)
	w.WriteInt4(secret.My.Serial)
	w.WriteInt4(secret.Other.Serial)
	w.WriteBytes1(iv)
	w.WriteBytes4(body.Bytes())
	w.WriteBytes2(sig)
	if err := w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeChat resolves the sender, verifies the signature and only then
// decrypts the payload. Contacts are not modified.
func DecodeChat(data []byte, contacts ContactFinder) (*Chat, error) {
	r := stream.NewReader(bytes.NewReader(data))
	version, err := r.ReadInt1()
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	alias, err := r.ReadString1()
	if err != nil {
		return nil, fmt.Errorf("read alias: %w", err)
	}
	sender := contacts.FindByMyAlias(alias)
	if sender == nil {
		return nil, fmt.Errorf("alias %s: %w", alias, errs.ErrUnknownAlias)
	}
	if version != ChatFormatVersion {
		return nil, fmt.Errorf("chat format %d: %w", version, errs.ErrUnsupportedVersion)
	}

	// The sender names its own component first, then ours.
	theirSerial, err := r.ReadInt4()
	if err != nil {
		return nil, fmt.Errorf("read serial: %w", err)
	}
	mySerial, err := r.ReadInt4()
	if err != nil {
		return nil, fmt.Errorf("read serial: %w", err)
	}
	mine := sender.FindSent(mySerial)
	if mine == nil {
		return nil, fmt.Errorf("%s used our component %d: %w", sender.Address, mySerial, errs.ErrUnknownComponent)
	}
	theirs := sender.FindReceived(theirSerial)
	if theirs == nil {
		return nil, fmt.Errorf("%s used its component %d: %w", sender.Address, theirSerial, errs.ErrUnknownComponent)
	}

	iv, err := r.ReadBytes1()
	if err != nil {
		return nil, fmt.Errorf("read iv: %w", err)
	}
	body, err := r.ReadBytes4()
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	sig, err := r.ReadBytes2()
	if err != nil {
		return nil, fmt.Errorf("read signature: %w", err)
	}
	if !signature.RSAVerify(sender.PublicKey, body, sig) {
		return nil, fmt.Errorf("message from %s: %w", sender.Address, errs.ErrBadSignature)
	}

	ciphertext, err := stream.NewReader(bytes.NewReader(body)).ReadBytes4()
	if err != nil {
		return nil, fmt.Errorf("read ciphertext: %w", err)
	}
	secret := model.Secret{My: mine, Other: theirs}
	plain, err := encryption.CBCDecrypt(secret.Key(), iv, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypt message from %s: %w", sender.Address, err)
	}

	msg, err := decodeData(sender, plain)
	if err != nil {
		return nil, err
	}
	return &Chat{Sender: sender, Secret: secret, Data: msg}, nil
}

func decodeData(sender *model.Contact, plain []byte) (*model.MessageData, error) {
	r := stream.NewReader(bytes.NewReader(plain))
	format, err := r.ReadInt1()
	if err != nil {
		return nil, fmt.Errorf("read data format: %w", err)
	}
	if format != DataFormatVersion {
		return nil, fmt.Errorf("data format %d: %w", format, errs.ErrUnsupportedVersion)
	}
	value, err := r.ReadBytes1()
	if err != nil {
		return nil, fmt.Errorf("read dh value: %w", err)
	}
	serial, err := r.ReadInt4()
	if err != nil {
		return nil, fmt.Errorf("read dh serial: %w", err)
	}
	if _, err := r.ReadInt4(); err != nil {
		return nil, fmt.Errorf("read group id: %w", err)
	}
	mime, err := r.ReadString1()
	if err != nil {
		return nil, fmt.Errorf("read content type: %w", err)
	}
	typ, err := model.ParseContentType(mime)
	if err != nil {
		return nil, err
	}
	content, err := r.ReadBytes4()
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return model.NewReceivedMessage(sender, content, typ, model.NewReceivedComponent(serial, dh.Decode(value))), nil
}

// ChatReceiverAlias returns the alias a chat message is addressed to
// without verifying it.
func ChatReceiverAlias(data []byte) (string, error) {
	r := stream.NewReader(bytes.NewReader(data))
	if _, err := r.ReadInt1(); err != nil {
		return "", err
	}
	return r.ReadString1()
}
