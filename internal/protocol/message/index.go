package message

import (
	"bytes"
	"fmt"
	"io"

	"relay_chat/internal/model"
	"relay_chat/internal/protocol/stream"
)

// DecodeHeaders reads the relay's message index: an int2 count followed by
// {int4 id, int4 size, string1 type} per message.
func DecodeHeaders(r io.Reader) ([]model.MessageHeader, error) {
	sr := stream.NewReader(r)
	n, err := sr.ReadInt2()
	if err != nil {
		return nil, fmt.Errorf("read header count: %w", err)
	}
	headers := make([]model.MessageHeader, 0, n)
	for i := int64(0); i < n; i++ {
		id, err := sr.ReadInt4()
		if err != nil {
			return nil, fmt.Errorf("read header %d id: %w", i, err)
		}
		size, err := sr.ReadInt4()
		if err != nil {
			return nil, fmt.Errorf("read header %d size: %w", i, err)
		}
		name, err := sr.ReadString1()
		if err != nil {
			return nil, fmt.Errorf("read header %d type: %w", i, err)
		}
		typ, err := model.ParseMessageType(name)
		if err != nil {
			return nil, err
		}
		headers = append(headers, model.MessageHeader{ID: id, Size: size, Type: typ})
	}
	return headers, nil
}

func EncodeHeaders(headers []model.MessageHeader) ([]byte, error) {
	var buf bytes.Buffer
	w := stream.NewWriter(&buf)
	w.WriteInt2(int64(len(headers)))
	for _, h := range headers {
		w.WriteInt4(h.ID)
		w.WriteInt4(h.Size)
		w.WriteString1(h.Type.String())
	}
	return buf.Bytes(), w.Err()
}

// DecodeAliases reads an int2 count followed by string1 aliases.
func DecodeAliases(r io.Reader) ([]string, error) {
	sr := stream.NewReader(r)
	n, err := sr.ReadInt2()
	if err != nil {
		return nil, fmt.Errorf("read alias count: %w", err)
	}
	aliases := make([]string, 0, n)
	for i := int64(0); i < n; i++ {
		a, err := sr.ReadString1()
		if err != nil {
			return nil, fmt.Errorf("read alias %d: %w", i, err)
		}
		aliases = append(aliases, a)
	}
	return aliases, nil
}

func EncodeAliases(aliases []string) ([]byte, error) {
	var buf bytes.Buffer
	w := stream.NewWriter(&buf)
	w.WriteInt2(int64(len(aliases)))
	for _, a := range aliases {
		w.WriteString1(a)
	}
	return buf.Bytes(), w.Err()
}

// EncodeString1 and EncodeInt4 build the single-field request bodies of the
// alias and delete endpoints.
func EncodeString1(s string) ([]byte, error) {
	var buf bytes.Buffer
	w := stream.NewWriter(&buf)
	w.WriteString1(s)
	return buf.Bytes(), w.Err()
}

func EncodeInt4(v int64) ([]byte, error) {
	var buf bytes.Buffer
	w := stream.NewWriter(&buf)
	w.WriteInt4(v)
	return buf.Bytes(), w.Err()
}

func DecodeString1(data []byte) (string, error) {
	return stream.NewReader(bytes.NewReader(data)).ReadString1()
}

func DecodeInt4(data []byte) (int64, error) {
	return stream.NewReader(bytes.NewReader(data)).ReadInt4()
}
