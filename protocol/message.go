// Package protocol defines the messages peers exchange over the gossip
// topic and their binary wire encoding.
package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
)

const (
	TypeJoin      uint8 = 0x01
	TypeChat      uint8 = 0x02
	TypeFileOffer uint8 = 0x03

	// MaxStringLen bounds every length-prefixed string on the wire so a
	// misbehaving peer cannot declare an unbounded payload.
	MaxStringLen uint16 = 4096

	HashSize = 32
)

var (
	ErrMalformed = errors.New("malformed message")
	ErrOversized = errors.New("declared length exceeds maximum")
)

// Hash is the sha256 digest identifying a shared blob.
type Hash [HashSize]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns a truncated hex form for display and logs.
func (h Hash) Short() string {
	return hex.EncodeToString(h[:4])
}

// Message is the tagged union carried over the gossip topic. Type selects
// the variant; only that variant's fields are encoded.
type Message struct {
	Type     uint8
	Nickname string
	PeerID   string

	// Chat
	Text string

	// FileOffer
	Filename string
	Size     uint64
	Hash     Hash
}

func NewJoin(nickname, peerID string) Message {
	return Message{Type: TypeJoin, Nickname: nickname, PeerID: peerID}
}

func NewChat(nickname, text string) Message {
	return Message{Type: TypeChat, Nickname: nickname, Text: text}
}

func NewFileOffer(nickname, peerID, filename string, size uint64, hash Hash) Message {
	return Message{
		Type:     TypeFileOffer,
		Nickname: nickname,
		PeerID:   peerID,
		Filename: filename,
		Size:     size,
		Hash:     hash,
	}
}

// Encode serializes the message. It is deterministic and never fails:
// a Message built through the constructors always encodes to the same bytes.
func Encode(m Message) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 64))
	buf.WriteByte(m.Type)

	switch m.Type {
	case TypeJoin:
		writeString(buf, m.Nickname)
		writeString(buf, m.PeerID)
	case TypeChat:
		writeString(buf, m.Nickname)
		writeString(buf, m.Text)
	case TypeFileOffer:
		writeString(buf, m.Nickname)
		writeString(buf, m.PeerID)
		writeString(buf, m.Filename)
		binary.Write(buf, binary.BigEndian, m.Size)
		buf.Write(m.Hash[:])
	}

	return buf.Bytes()
}

// Decode parses wire bytes back into a Message. It returns ErrMalformed on
// truncated input, an unknown tag, or trailing garbage, and ErrOversized
// when a declared string length exceeds MaxStringLen.
func Decode(data []byte) (Message, error) {
	if len(data) < 1 {
		return Message{}, ErrMalformed
	}

	r := bytes.NewReader(data[1:])
	m := Message{Type: data[0]}

	var err error
	switch m.Type {
	case TypeJoin:
		if m.Nickname, err = readString(r); err != nil {
			return Message{}, err
		}
		if m.PeerID, err = readString(r); err != nil {
			return Message{}, err
		}
	case TypeChat:
		if m.Nickname, err = readString(r); err != nil {
			return Message{}, err
		}
		if m.Text, err = readString(r); err != nil {
			return Message{}, err
		}
	case TypeFileOffer:
		if m.Nickname, err = readString(r); err != nil {
			return Message{}, err
		}
		if m.PeerID, err = readString(r); err != nil {
			return Message{}, err
		}
		if m.Filename, err = readString(r); err != nil {
			return Message{}, err
		}
		if err = binary.Read(r, binary.BigEndian, &m.Size); err != nil {
			return Message{}, ErrMalformed
		}
		if _, err = readFull(r, m.Hash[:]); err != nil {
			return Message{}, ErrMalformed
		}
	default:
		return Message{}, ErrMalformed
	}

	if r.Len() != 0 {
		return Message{}, ErrMalformed
	}

	return m, nil
}

// writeString clamps to MaxStringLen so Encode stays total and never
// produces a frame the decoder would reject as oversized.
func writeString(buf *bytes.Buffer, s string) {
	if len(s) > int(MaxStringLen) {
		s = s[:MaxStringLen]
	}
	binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", ErrMalformed
	}

	if n > MaxStringLen {
		return "", ErrOversized
	}

	b := make([]byte, n)
	if _, err := readFull(r, b); err != nil {
		return "", ErrMalformed
	}

	return string(b), nil
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	// bytes.Reader reports EOF before the zero-length case, which would
	// reject an empty final field of an otherwise valid message.
	if len(b) == 0 {
		return 0, nil
	}
	if r.Len() < len(b) {
		return 0, ErrMalformed
	}
	return r.Read(b)
}
