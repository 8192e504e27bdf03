package chat

// Key identifies a decoded keyboard action.
type Key int

const (
	KeyRune Key = iota
	KeyEnter
	KeyEsc
	KeyBackspace
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyTab
)

// KeyEvent is one keystroke. Rune is set only for KeyRune.
type KeyEvent struct {
	Key  Key
	Rune rune
}
