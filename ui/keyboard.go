package ui

import (
	"fmt"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"

	"github.com/peerchat/peerchat/chat"
)

// Keyboard puts the terminal into raw mode and turns stdin bytes into
// key events. Close cancels the pending read and restores the terminal.
type Keyboard struct {
	reader    cancelreader.CancelReader
	fd        int
	state     *term.State
	events    chan chat.KeyEvent
	done      chan struct{}
	closeOnce sync.Once
}

func NewKeyboard() (*Keyboard, error) {
	fd := int(os.Stdin.Fd())

	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to enter raw mode: %w", err)
	}

	reader, err := cancelreader.NewReader(os.Stdin)
	if err != nil {
		term.Restore(fd, state)
		return nil, fmt.Errorf("failed to wrap stdin: %w", err)
	}

	k := &Keyboard{
		reader: reader,
		fd:     fd,
		state:  state,
		events: make(chan chat.KeyEvent, 16),
		done:   make(chan struct{}),
	}
	go k.readLoop()

	return k, nil
}

func (k *Keyboard) Events() <-chan chat.KeyEvent {
	return k.events
}

func (k *Keyboard) Close() {
	k.closeOnce.Do(func() {
		k.reader.Cancel()
		close(k.done)
		if k.state != nil {
			term.Restore(k.fd, k.state)
		}
	})
}

func (k *Keyboard) readLoop() {
	defer close(k.events)

	buf := make([]byte, 64)
	for {
		n, err := k.reader.Read(buf)
		if err != nil {
			return
		}
		for _, ev := range parseKeys(buf[:n]) {
			// The consumer may be gone already; never wedge on the send.
			select {
			case k.events <- ev:
			case <-k.done:
				return
			}
		}
	}
}

// parseKeys decodes one read's worth of bytes. Arrow keys arrive as
// three-byte CSI sequences; a lone 0x1b is the escape key itself.
func parseKeys(buf []byte) []chat.KeyEvent {
	var events []chat.KeyEvent

	for len(buf) > 0 {
		switch {
		case buf[0] == 0x1b:
			if len(buf) >= 3 && buf[1] == '[' {
				switch buf[2] {
				case 'A':
					events = append(events, chat.KeyEvent{Key: chat.KeyUp})
				case 'B':
					events = append(events, chat.KeyEvent{Key: chat.KeyDown})
				case 'C':
					events = append(events, chat.KeyEvent{Key: chat.KeyRight})
				case 'D':
					events = append(events, chat.KeyEvent{Key: chat.KeyLeft})
				}
				buf = buf[3:]
				continue
			}
			events = append(events, chat.KeyEvent{Key: chat.KeyEsc})
			buf = buf[1:]

		case buf[0] == '\r' || buf[0] == '\n':
			events = append(events, chat.KeyEvent{Key: chat.KeyEnter})
			buf = buf[1:]

		case buf[0] == '\t':
			events = append(events, chat.KeyEvent{Key: chat.KeyTab})
			buf = buf[1:]

		case buf[0] == 0x7f || buf[0] == 0x08:
			events = append(events, chat.KeyEvent{Key: chat.KeyBackspace})
			buf = buf[1:]

		case buf[0] < 0x20:
			// Other control bytes are ignored.
			buf = buf[1:]

		default:
			r, size := utf8.DecodeRune(buf)
			if r == utf8.RuneError && size == 1 {
				buf = buf[1:]
				continue
			}
			events = append(events, chat.KeyEvent{Key: chat.KeyRune, Rune: r})
			buf = buf[size:]
		}
	}

	return events
}
