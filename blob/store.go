package blob

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/rs/zerolog"

	"github.com/peerchat/peerchat/protocol"
)

// ProtocolID is the libp2p stream protocol for fetching shared files.
const ProtocolID = "/peerchat/blob/1.0.0"

// Store indexes local files by content hash and serves them to peers
// over a libp2p stream.
type Store struct {
	host host.Host
	dir  string
	log  zerolog.Logger

	mu    sync.RWMutex
	blobs map[protocol.Hash]string
}

// NewStore creates a store that saves downloads into dir and registers
// the blob stream handler on the host.
func NewStore(h host.Host, dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	s := &Store{
		host:  h,
		dir:   dir,
		log:   log,
		blobs: make(map[protocol.Hash]string),
	}
	h.SetStreamHandler(ProtocolID, s.handleStream)

	return s, nil
}

// Import hashes the file at path and registers it for serving. The file
// stays where it is; only its path is recorded.
func (s *Store) Import(path string) (protocol.Hash, uint64, error) {
	var hash protocol.Hash

	file, err := os.Open(path)
	if err != nil {
		return hash, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return hash, 0, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return hash, 0, fmt.Errorf("%s is a directory", path)
	}

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return hash, 0, fmt.Errorf("failed to hash file: %w", err)
	}
	copy(hash[:], hasher.Sum(nil))

	s.mu.Lock()
	s.blobs[hash] = path
	s.mu.Unlock()

	s.log.Info().Str("hash", hash.Short()).Str("path", path).Msg("file imported")

	return hash, uint64(info.Size()), nil
}

// Lookup returns the local path of an imported blob.
func (s *Store) Lookup(hash protocol.Hash) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := s.blobs[hash]
	return path, ok
}

// handleStream serves one blob request. The peer sends the hex hash it
// wants followed by a newline; the response is either "OK <size>\n" and
// the file bytes, or "ERR <reason>\n".
func (s *Store) handleStream(stream network.Stream) {
	defer stream.Close()

	reader := bufio.NewReader(stream)
	line, err := reader.ReadString('\n')
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read blob request")
		return
	}

	hash, err := parseHash(strings.TrimSpace(line))
	if err != nil {
		fmt.Fprintf(stream, "ERR bad request\n")
		return
	}

	path, ok := s.Lookup(hash)
	if !ok {
		fmt.Fprintf(stream, "ERR not found\n")
		return
	}

	file, err := os.Open(path)
	if err != nil {
		s.log.Warn().Str("path", path).Err(err).Msg("imported file no longer readable")
		fmt.Fprintf(stream, "ERR not found\n")
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		fmt.Fprintf(stream, "ERR not found\n")
		return
	}

	if _, err := fmt.Fprintf(stream, "OK %d\n", info.Size()); err != nil {
		return
	}
	if _, err := io.Copy(stream, file); err != nil {
		s.log.Warn().Str("hash", hash.Short()).Err(err).Msg("blob transfer interrupted")
		return
	}

	s.log.Info().Str("hash", hash.Short()).Stringer("peer", stream.Conn().RemotePeer()).Msg("blob served")
}

func parseHash(s string) (protocol.Hash, error) {
	var hash protocol.Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return hash, err
	}
	if len(b) != protocol.HashSize {
		return hash, fmt.Errorf("invalid hash length %d", len(b))
	}
	copy(hash[:], b)
	return hash, nil
}

// destPath picks a collision-free path for an incoming file, appending a
// timestamp when the name is already taken.
func (s *Store) destPath(filename string) string {
	base := filepath.Base(filename)
	path := filepath.Join(s.dir, base)

	if _, err := os.Stat(path); err == nil {
		ext := filepath.Ext(base)
		name := strings.TrimSuffix(base, ext)
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%d%s", name, time.Now().Unix(), ext))
	}

	return path
}
