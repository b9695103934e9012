//go:build darwin

package platform

import (
	"fmt"
	"strings"

	"golang.design/x/hotkey"
)

const chordModifier = "cmd"

func modifiers(c KeyCombo) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if c.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if c.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	if c.Alt {
		mods = append(mods, hotkey.ModOption)
	}
	if c.Win {
		mods = append(mods, hotkey.ModCmd)
	}
	return mods
}

// KeyCode returns the macOS virtual key code (kVK_*) for a key name.
// Returns 0 for empty string (modifier-only hotkey)
func KeyCode(key string) (int, error) {
	if key == "" {
		return 0, nil
	}

	codes := map[string]int{
		"a": 0x00, "s": 0x01, "d": 0x02, "f": 0x03, "h": 0x04,
		"g": 0x05, "z": 0x06, "x": 0x07, "c": 0x08, "v": 0x09,
		"b": 0x0B, "q": 0x0C, "w": 0x0D, "e": 0x0E, "r": 0x0F,
		"y": 0x10, "t": 0x11, "o": 0x1F, "u": 0x20, "i": 0x22,
		"p": 0x23, "l": 0x25, "j": 0x26, "k": 0x28, "n": 0x2D,
		"m": 0x2E,
		"1": 0x12, "2": 0x13, "3": 0x14, "4": 0x15, "5": 0x17,
		"6": 0x16, "7": 0x1A, "8": 0x1C, "9": 0x19, "0": 0x1D,
		"f1": 0x7A, "f2": 0x78, "f3": 0x63, "f4": 0x76,
		"f5": 0x60, "f6": 0x61, "f7": 0x62, "f8": 0x64,
		"f9": 0x65, "f10": 0x6D, "f11": 0x67, "f12": 0x6F,
		"space": 0x31, "enter": 0x24, "esc": 0x35, "escape": 0x35,
		"tab": 0x30, "backspace": 0x33,
		"\\": 0x2A, "/": 0x2C, ";": 0x29, "'": 0x27,
		",": 0x2B, ".": 0x2F, "-": 0x1B, "=": 0x18,
		"[": 0x21, "]": 0x1E, "`": 0x32,
	}

	if code, ok := codes[strings.ToLower(key)]; ok {
		return code, nil
	}

	return 0, fmt.Errorf("unknown key: %s", key)
}
