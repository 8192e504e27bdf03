package blob

import (
	"bufio"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/peerchat/peerchat/protocol"
	"github.com/peerchat/peerchat/transfer"
)

const (
	progressChunk    = 64 * 1024
	progressInterval = 100 * time.Millisecond
	requestTimeout   = 10 * time.Second
)

// Download fetches a blob from the offer's sender and writes it into the
// store's download directory. Progress and the final outcome are reported
// on the events channel; the computed hash travels with the completion
// event so the caller can verify it against the offer.
func (s *Store) Download(ctx context.Context, id string, offer transfer.Offer, events chan<- transfer.Event) {
	if err := s.fetch(ctx, id, offer, events); err != nil {
		reason := err.Error()
		if ctx.Err() != nil {
			reason = "cancelled"
		}
		s.log.Warn().Str("file", offer.Filename).Str("reason", reason).Msg("download failed")
		s.send(ctx, events, transfer.Event{ID: id, Kind: transfer.EventFailed, Reason: reason})
	}
}

func (s *Store) fetch(ctx context.Context, id string, offer transfer.Offer, events chan<- transfer.Event) error {
	sender, err := peer.Decode(offer.SenderID)
	if err != nil {
		return fmt.Errorf("invalid sender id: %w", err)
	}

	streamCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	stream, err := s.host.NewStream(streamCtx, sender, ProtocolID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer stream.Close()

	go func() {
		<-ctx.Done()
		stream.Reset()
	}()

	if _, err := fmt.Fprintf(stream, "%s\n", offer.Hash); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(stream)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	line = strings.TrimSpace(line)

	var size uint64
	if _, err := fmt.Sscanf(line, "OK %d", &size); err != nil {
		return fmt.Errorf("peer refused: %s", line)
	}

	dest := s.destPath(offer.Filename)
	tmp, err := os.CreateTemp(s.dir, ".peerchat-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	hasher := sha256.New()
	out := io.MultiWriter(tmp, hasher)

	var received uint64
	lastReport := time.Now()
	buf := make([]byte, progressChunk)

	for received < size {
		want := size - received
		if want > progressChunk {
			want = progressChunk
		}

		n, err := io.ReadFull(reader, buf[:want])
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("failed to write file: %w", werr)
			}
			received += uint64(n)
		}
		if err != nil {
			return fmt.Errorf("transfer interrupted: %w", err)
		}

		if time.Since(lastReport) >= progressInterval {
			lastReport = time.Now()
			s.send(ctx, events, transfer.Event{ID: id, Kind: transfer.EventProgress, Bytes: received})
		}
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	var hash protocol.Hash
	copy(hash[:], hasher.Sum(nil))

	s.log.Info().Str("file", offer.Filename).Str("path", dest).Msg("download complete")

	s.send(ctx, events, transfer.Event{
		ID:    id,
		Kind:  transfer.EventComplete,
		Bytes: received,
		Hash:  hash,
		Path:  dest,
	})

	return nil
}

// send delivers an event, falling back to a non-blocking attempt after
// cancellation so the final failure event still reaches a live consumer.
func (s *Store) send(ctx context.Context, events chan<- transfer.Event, ev transfer.Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
		select {
		case events <- ev:
		default:
		}
	}
}
