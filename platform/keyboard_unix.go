//go:build linux || darwin

package platform

import (
	"fmt"

	"github.com/go-vgo/robotgo"
)

// RobotKeyboard implements the Keyboard interface with robotgo. Key state
// is read from the window system, not from hotkey events.
type RobotKeyboard struct {
	state keyState
}

// NewKeyboard creates a new robotgo keyboard instance
func NewKeyboard() Keyboard {
	return &RobotKeyboard{}
}

// Copy simulates the platform copy chord
func (k *RobotKeyboard) Copy() error {
	if err := robotgo.KeyTap("c", chordModifier); err != nil {
		return fmt.Errorf("key tap %s+c: %w", chordModifier, err)
	}
	return nil
}

// Paste simulates the platform paste chord
func (k *RobotKeyboard) Paste() error {
	if err := robotgo.KeyTap("v", chordModifier); err != nil {
		return fmt.Errorf("key tap %s+v: %w", chordModifier, err)
	}
	return nil
}

// Pressed reports whether any key of the combo is physically held down
func (k *RobotKeyboard) Pressed(combo KeyCombo) bool {
	return k.state.pressed(combo)
}
