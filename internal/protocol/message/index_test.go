package message_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay_chat/internal/errs"
	"relay_chat/internal/model"
	"relay_chat/internal/protocol/message"
)

func TestHeadersRoundTrip(t *testing.T) {
	in := []model.MessageHeader{
		{ID: 7, Size: 120, Type: model.MessageTypeInvitation},
		{ID: 42, Size: 3000, Type: model.MessageTypeChat},
	}
	data, err := message.EncodeHeaders(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 2, 0, 0, 0, 7, 0, 0, 0, 120, 10}, data[:11])
	assert.Equal(t, "invitation", string(data[11:21]))

	out, err := message.DecodeHeaders(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeHeadersUnknownType(t *testing.T) {
	data := []byte{0, 1, 0, 0, 0, 1, 0, 0, 0, 1, 3, 'f', 'o', 'o'}
	_, err := message.DecodeHeaders(bytes.NewReader(data))
	assert.ErrorIs(t, err, errs.ErrUnknownMessageType)
}

func TestAliasesRoundTrip(t *testing.T) {
	data, err := message.EncodeAliases([]string{"ABC", "DEF"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 2, 3, 'A', 'B', 'C', 3, 'D', 'E', 'F'}, data)

	out, err := message.DecodeAliases(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC", "DEF"}, out)
}

func TestSingleFieldBodies(t *testing.T) {
	b, err := message.EncodeString1("ALIAS")
	require.NoError(t, err)
	s, err := message.DecodeString1(b)
	require.NoError(t, err)
	assert.Equal(t, "ALIAS", s)

	b, err = message.EncodeInt4(42)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 42}, b)
	v, err := message.DecodeInt4(b)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}
