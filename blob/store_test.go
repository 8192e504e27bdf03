package blob

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerchat/peerchat/protocol"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return &Store{
		dir:   t.TempDir(),
		log:   zerolog.Nop(),
		blobs: make(map[protocol.Hash]string),
	}
}

func TestImport(t *testing.T) {
	s := testStore(t)

	content := []byte("hello from the other side")
	path := filepath.Join(t.TempDir(), "greeting.txt")
	require.NoError(t, os.WriteFile(path, content, 0644))

	hash, size, err := s.Import(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(content)), size)
	assert.Equal(t, protocol.Hash(sha256.Sum256(content)), hash)

	got, ok := s.Lookup(hash)
	assert.True(t, ok)
	assert.Equal(t, path, got)
}

func TestImportMissingFile(t *testing.T) {
	s := testStore(t)

	_, _, err := s.Import(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestImportDirectory(t *testing.T) {
	s := testStore(t)

	_, _, err := s.Import(t.TempDir())
	assert.Error(t, err)
}

func TestLookupUnknownHash(t *testing.T) {
	s := testStore(t)

	_, ok := s.Lookup(protocol.Hash{1, 2, 3})
	assert.False(t, ok)
}

func TestParseHash(t *testing.T) {
	want := protocol.Hash(sha256.Sum256([]byte("x")))

	got, err := parseHash(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = parseHash("abcdef")
	assert.Error(t, err)

	_, err = parseHash("zz")
	assert.Error(t, err)
}

func TestDestPathAvoidsCollision(t *testing.T) {
	s := testStore(t)

	first := s.destPath("notes.txt")
	assert.Equal(t, filepath.Join(s.dir, "notes.txt"), first)

	require.NoError(t, os.WriteFile(first, []byte("taken"), 0644))

	second := s.destPath("notes.txt")
	assert.NotEqual(t, first, second)
	assert.Equal(t, s.dir, filepath.Dir(second))
}
