// Package ticket encodes a room's join address as a copy-paste-safe string.
//
// A ticket carries the gossip topic identifier and a set of bootstrap peer
// addresses. The bootstrap set is canonicalized (sorted, deduplicated) before
// encoding so two tickets for the same room always produce the same string.
package ticket

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"sort"
	"strings"
)

const (
	// prefix identifies the ticket kind so other token formats are
	// rejected up front.
	prefix = "chat"

	TopicSize = 32

	maxAddrLen = 1024
	maxPeers   = 256
)

var (
	ErrInvalidFormat = errors.New("invalid ticket format")
	ErrTruncated     = errors.New("truncated ticket")

	encoding = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// Ticket identifies a chat room: a random topic plus the addresses of peers
// already in it. Immutable once shared.
type Ticket struct {
	Topic     [TopicSize]byte
	Bootstrap []string
}

// New creates a ticket for a fresh room with a random topic and no
// bootstrap peers yet.
func New() Ticket {
	var t Ticket
	if _, err := rand.Read(t.Topic[:]); err != nil {
		panic(err)
	}
	return t
}

// WithBootstrap returns a copy of the ticket with addrs added to the
// bootstrap set.
func (t Ticket) WithBootstrap(addrs ...string) Ticket {
	out := Ticket{Topic: t.Topic}
	out.Bootstrap = append(append(out.Bootstrap, t.Bootstrap...), addrs...)
	return out
}

func canonical(addrs []string) []string {
	sorted := make([]string, 0, len(addrs))
	seen := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		sorted = append(sorted, a)
	}
	sort.Strings(sorted)
	return sorted
}

// Encode serializes the ticket to a single-line base32 string. Set-equal
// bootstrap peers always encode identically.
func (t Ticket) Encode() string {
	addrs := canonical(t.Bootstrap)

	buf := bytes.NewBuffer(make([]byte, 0, TopicSize+len(addrs)*64))
	buf.Write(t.Topic[:])
	binary.Write(buf, binary.BigEndian, uint16(len(addrs)))
	for _, a := range addrs {
		binary.Write(buf, binary.BigEndian, uint16(len(a)))
		buf.WriteString(a)
	}

	payload := buf.Bytes()
	payload = binary.BigEndian.AppendUint32(payload, crc32.ChecksumIEEE(buf.Bytes()))

	return prefix + strings.ToLower(encoding.EncodeToString(payload))
}

// Decode parses a ticket string. It returns ErrInvalidFormat for a wrong
// prefix, a character outside the base32 alphabet, or a checksum mismatch,
// and ErrTruncated when the payload ends before its declared contents.
func Decode(s string) (Ticket, error) {
	if !strings.HasPrefix(s, prefix) {
		return Ticket{}, ErrInvalidFormat
	}

	payload, err := encoding.DecodeString(strings.ToUpper(strings.TrimPrefix(s, prefix)))
	if err != nil {
		return Ticket{}, ErrInvalidFormat
	}

	if len(payload) < TopicSize+2+4 {
		return Ticket{}, ErrTruncated
	}

	body, sum := payload[:len(payload)-4], binary.BigEndian.Uint32(payload[len(payload)-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return Ticket{}, ErrInvalidFormat
	}

	var t Ticket
	copy(t.Topic[:], body[:TopicSize])

	r := bytes.NewReader(body[TopicSize:])
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return Ticket{}, ErrTruncated
	}
	if count > maxPeers {
		return Ticket{}, ErrInvalidFormat
	}

	for range count {
		var n uint16
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return Ticket{}, ErrTruncated
		}
		if n > maxAddrLen {
			return Ticket{}, ErrInvalidFormat
		}
		addr := make([]byte, n)
		if r.Len() < int(n) {
			return Ticket{}, ErrTruncated
		}
		r.Read(addr)
		t.Bootstrap = append(t.Bootstrap, string(addr))
	}

	if r.Len() != 0 {
		return Ticket{}, ErrInvalidFormat
	}

	return t, nil
}
