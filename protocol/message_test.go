package protocol

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHash() Hash {
	var h Hash
	for i := range h {
		h[i] = byte(i)
	}
	return h
}

func TestMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{
			name: "join",
			msg:  NewJoin("Alice", "12D3KooWAlice"),
		},
		{
			name: "chat",
			msg:  NewChat("Bob", "hello there"),
		},
		{
			name: "chat empty text",
			msg:  NewChat("Bob", ""),
		},
		{
			name: "join empty peer id",
			msg:  NewJoin("Alice", ""),
		},
		{
			name: "all fields empty",
			msg:  NewChat("", ""),
		},
		{
			name: "file offer",
			msg:  NewFileOffer("Alice", "12D3KooWAlice", "photo.png", 123456, testHash()),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(tt.msg)
			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, decoded)
		})
	}
}

func TestEncodeClampsLongStrings(t *testing.T) {
	long := strings.Repeat("x", int(MaxStringLen)+100)

	decoded, err := Decode(Encode(NewChat("Bob", long)))
	require.NoError(t, err)
	assert.Equal(t, long[:MaxStringLen], decoded.Text)
}

func TestEncodeDeterministic(t *testing.T) {
	msg := NewFileOffer("Alice", "12D3KooWAlice", "a.txt", 10, testHash())
	assert.Equal(t, Encode(msg), Encode(msg))
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "empty",
			data: []byte{},
		},
		{
			name: "truncated two bytes",
			data: []byte{TypeChat, 0x00},
		},
		{
			name: "unknown tag",
			data: []byte{0x99, 0x00, 0x00},
		},
		{
			name: "string shorter than declared",
			data: []byte{TypeChat, 0x00, 0x05, 'h', 'i'},
		},
		{
			name: "trailing garbage",
			data: append(Encode(NewChat("a", "b")), 0xFF),
		},
		{
			name: "file offer missing hash",
			data: Encode(NewFileOffer("a", "b", "c", 1, testHash()))[:20],
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecodeOversized(t *testing.T) {
	data := []byte{TypeChat}
	data = binary.BigEndian.AppendUint16(data, MaxStringLen+1)

	_, err := Decode(data)
	assert.ErrorIs(t, err, ErrOversized)
}

func TestHashShort(t *testing.T) {
	h := testHash()
	assert.Equal(t, "00010203", h.Short())
	assert.Len(t, h.String(), 64)
}
