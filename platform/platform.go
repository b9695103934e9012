package platform

import (
	"context"
	"errors"
)

var (
	// ErrAccessDenied is returned when the clipboard could not be opened,
	// usually because another process holds it.
	ErrAccessDenied = errors.New("clipboard access denied")

	// ErrNoText is returned by Read when the clipboard holds no text.
	ErrNoText = errors.New("clipboard holds no text")
)

// KeyCombo represents a keyboard key combination
type KeyCombo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Win   bool
	Key   int // Platform key code, see KeyCode
}

// EventType represents the type of hotkey event
type EventType int

const (
	Pressed EventType = iota
	Released
)

// Binding names a key combination registered with the listener
type Binding struct {
	Name  string
	Combo KeyCombo
}

// Event represents a hotkey event for one binding
type Event struct {
	Type    EventType
	Binding string
}

// Hotkey provides global hotkey detection
type Hotkey interface {
	Listen(ctx context.Context, bindings []Binding) (<-chan Event, error)
}

// Clipboard provides clipboard access. Every call opens and closes the
// system clipboard on its own.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
	Clear() error
}

// Keyboard issues synthetic key chords to the focused application and
// reports physical key state.
type Keyboard interface {
	Copy() error
	Paste() error
	Pressed(combo KeyCombo) bool
}
