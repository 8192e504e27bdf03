package ui

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muesli/cancelreader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerchat/peerchat/chat"
)

type fakeCancelReader struct {
	data      chan []byte
	cancelled chan struct{}
	once      sync.Once
}

func newFakeCancelReader() *fakeCancelReader {
	return &fakeCancelReader{
		data:      make(chan []byte, 2),
		cancelled: make(chan struct{}),
	}
}

func (r *fakeCancelReader) Read(p []byte) (int, error) {
	select {
	case b := <-r.data:
		return copy(p, b), nil
	case <-r.cancelled:
		return 0, cancelreader.ErrCanceled
	}
}

func (r *fakeCancelReader) Cancel() bool {
	r.once.Do(func() { close(r.cancelled) })
	return true
}

func (r *fakeCancelReader) Close() error { return nil }

func TestParseKeys(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  []chat.KeyEvent
	}{
		{
			name:  "plain text",
			input: []byte("hi"),
			want: []chat.KeyEvent{
				{Key: chat.KeyRune, Rune: 'h'},
				{Key: chat.KeyRune, Rune: 'i'},
			},
		},
		{
			name:  "utf8 rune",
			input: []byte("é"),
			want:  []chat.KeyEvent{{Key: chat.KeyRune, Rune: 'é'}},
		},
		{
			name:  "enter",
			input: []byte{'\r'},
			want:  []chat.KeyEvent{{Key: chat.KeyEnter}},
		},
		{
			name:  "tab",
			input: []byte{'\t'},
			want:  []chat.KeyEvent{{Key: chat.KeyTab}},
		},
		{
			name:  "backspace",
			input: []byte{0x7f},
			want:  []chat.KeyEvent{{Key: chat.KeyBackspace}},
		},
		{
			name:  "lone escape",
			input: []byte{0x1b},
			want:  []chat.KeyEvent{{Key: chat.KeyEsc}},
		},
		{
			name:  "arrow up",
			input: []byte{0x1b, '[', 'A'},
			want:  []chat.KeyEvent{{Key: chat.KeyUp}},
		},
		{
			name:  "arrow down",
			input: []byte{0x1b, '[', 'B'},
			want:  []chat.KeyEvent{{Key: chat.KeyDown}},
		},
		{
			name:  "arrows then text",
			input: []byte{0x1b, '[', 'D', 'x'},
			want: []chat.KeyEvent{
				{Key: chat.KeyLeft},
				{Key: chat.KeyRune, Rune: 'x'},
			},
		},
		{
			name:  "control bytes ignored",
			input: []byte{0x01, 0x02, 'a'},
			want:  []chat.KeyEvent{{Key: chat.KeyRune, Rune: 'a'}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseKeys(tt.input)
			require.Len(t, got, len(tt.want))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCloseUnblocksReadLoop(t *testing.T) {
	r := newFakeCancelReader()
	k := &Keyboard{
		reader: r,
		events: make(chan chat.KeyEvent, 16),
		done:   make(chan struct{}),
	}
	go k.readLoop()

	// More keys than the event buffer holds, so the loop blocks mid-send
	// once nobody is consuming.
	r.data <- []byte(strings.Repeat("a", 40))
	require.Eventually(t, func() bool { return len(k.events) == 16 }, time.Second, time.Millisecond)

	k.Close()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-k.events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("read loop did not stop after Close")
		}
	}
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[--------------------]", progressBar(0, 100))
	assert.Equal(t, "[##########----------]", progressBar(50, 100))
	assert.Equal(t, "[####################]", progressBar(100, 100))
	assert.Equal(t, "[####################]", progressBar(0, 0))
	assert.Equal(t, "[####################]", progressBar(200, 100))
}
