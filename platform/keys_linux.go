//go:build linux

package platform

import (
	"fmt"
	"strings"

	"golang.design/x/hotkey"
)

const chordModifier = "ctrl"

func modifiers(c KeyCombo) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if c.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if c.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	if c.Alt {
		mods = append(mods, hotkey.Mod1)
	}
	if c.Win {
		mods = append(mods, hotkey.Mod4)
	}
	return mods
}

// KeyCode returns the X11 keysym for a key name.
// Returns 0 for empty string (modifier-only hotkey)
func KeyCode(key string) (int, error) {
	if key == "" {
		return 0, nil
	}

	key = strings.ToLower(key)
	if len(key) == 1 && (key[0] >= 'a' && key[0] <= 'z' || key[0] >= '0' && key[0] <= '9') {
		return int(key[0]), nil
	}

	codes := map[string]int{
		"f1": 0xffbe, "f2": 0xffbf, "f3": 0xffc0, "f4": 0xffc1,
		"f5": 0xffc2, "f6": 0xffc3, "f7": 0xffc4, "f8": 0xffc5,
		"f9": 0xffc6, "f10": 0xffc7, "f11": 0xffc8, "f12": 0xffc9,
		"space": 0x20, "enter": 0xff0d, "esc": 0xff1b, "escape": 0xff1b,
		"tab": 0xff09, "backspace": 0xff08,
		"\\": 0x5c, "/": 0x2f, ";": 0x3b, "'": 0x27,
		",": 0x2c, ".": 0x2e, "-": 0x2d, "=": 0x3d,
		"[": 0x5b, "]": 0x5d, "`": 0x60,
	}

	if code, ok := codes[key]; ok {
		return code, nil
	}

	return 0, fmt.Errorf("unknown key: %s", key)
}
