package chat

import (
	"github.com/peerchat/peerchat/conntrack"
	"github.com/peerchat/peerchat/transfer"
)

// LineKind tags a display line so the renderer can style it.
type LineKind int

const (
	LineSystem LineKind = iota
	LineTicket
	LineChat
)

// Line is one entry in the message pane.
type Line struct {
	Kind     LineKind
	Nickname string
	Text     string
}

// Peer is a known room member.
type Peer struct {
	Name string
	Conn conntrack.ConnType
}

// Mode selects which pane owns keyboard input.
type Mode int

const (
	ModeChat Mode = iota
	ModeTransfers
)

// App is the full mutable state of a chat session. It is owned by the
// coordinator goroutine; everything else sees it only through render
// snapshots.
type App struct {
	Nickname string
	PeerID   string

	Lines     []Line
	Peers     map[string]*Peer
	Transfers *transfer.Manager

	Input  []rune
	Cursor int
	Mode   Mode
	Quit   bool
}

func NewApp(nickname, peerID string, transfers *transfer.Manager) *App {
	return &App{
		Nickname:  nickname,
		PeerID:    peerID,
		Peers:     make(map[string]*Peer),
		Transfers: transfers,
	}
}

// System appends an informational line.
func (a *App) System(text string) {
	a.Lines = append(a.Lines, Line{Kind: LineSystem, Text: text})
}

// Ticket appends the shareable room ticket so it stays visible in the
// scrollback.
func (a *App) Ticket(text string) {
	a.Lines = append(a.Lines, Line{Kind: LineTicket, Text: text})
}

// Chat appends a chat message from nickname.
func (a *App) Chat(nickname, text string) {
	a.Lines = append(a.Lines, Line{Kind: LineChat, Nickname: nickname, Text: text})
}

// InsertRune puts r at the cursor.
func (a *App) InsertRune(r rune) {
	a.Input = append(a.Input[:a.Cursor], append([]rune{r}, a.Input[a.Cursor:]...)...)
	a.Cursor++
}

// Backspace removes the rune before the cursor.
func (a *App) Backspace() {
	if a.Cursor == 0 {
		return
	}
	a.Input = append(a.Input[:a.Cursor-1], a.Input[a.Cursor:]...)
	a.Cursor--
}

func (a *App) CursorLeft() {
	if a.Cursor > 0 {
		a.Cursor--
	}
}

func (a *App) CursorRight() {
	if a.Cursor < len(a.Input) {
		a.Cursor++
	}
}

// TakeInput returns the current input line and clears it.
func (a *App) TakeInput() string {
	text := string(a.Input)
	a.Input = a.Input[:0]
	a.Cursor = 0
	return text
}

// PeerName resolves a peer id to its announced nickname, falling back to
// a shortened id for peers that have not introduced themselves yet.
func (a *App) PeerName(id string) string {
	if p, ok := a.Peers[id]; ok && p.Name != "" {
		return p.Name
	}
	return shortID(id)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}
