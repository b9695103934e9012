package config

import (
	"fmt"
	"strings"

	"github.com/jinzheng8115/smartanychat/platform"
)

// KeyCombo represents a parsed keyboard combination
type KeyCombo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Win   bool
	Key   string
}

// ParseHotkey parses a hotkey combo string like "ctrl+alt+\" or "ctrl+win"
func ParseHotkey(combo string) (KeyCombo, error) {
	var kc KeyCombo
	if strings.TrimSpace(combo) == "" {
		return kc, fmt.Errorf("empty hotkey combo")
	}
	parts := strings.Split(strings.ToLower(combo), "+")

	for i, part := range parts {
		part = strings.TrimSpace(part)

		// Check if this part is a modifier
		isModifier := false
		switch part {
		case "ctrl", "control":
			kc.Ctrl = true
			isModifier = true
		case "shift":
			kc.Shift = true
			isModifier = true
		case "alt", "option":
			kc.Alt = true
			isModifier = true
		case "win", "windows", "cmd", "super":
			kc.Win = true
			isModifier = true
		}

		// If it's not a modifier and it's the last part, it's the key
		if !isModifier {
			if i == len(parts)-1 && part != "" {
				kc.Key = part
			} else {
				return kc, fmt.Errorf("unknown modifier: %s", part)
			}
		}
	}

	// Key is optional - if empty, it's a modifier-only combo
	// But we need at least one modifier
	if !kc.Ctrl && !kc.Shift && !kc.Alt && !kc.Win {
		return kc, fmt.Errorf("no modifiers specified in combo")
	}

	return kc, nil
}

// Platform resolves the key name to the platform key code
func (k KeyCombo) Platform() (platform.KeyCombo, error) {
	code, err := platform.KeyCode(k.Key)
	if err != nil {
		return platform.KeyCombo{}, err
	}
	return platform.KeyCombo{
		Ctrl:  k.Ctrl,
		Shift: k.Shift,
		Alt:   k.Alt,
		Win:   k.Win,
		Key:   code,
	}, nil
}

// String formats the combo in the form ParseHotkey accepts
func (k KeyCombo) String() string {
	var parts []string
	if k.Ctrl {
		parts = append(parts, "ctrl")
	}
	if k.Shift {
		parts = append(parts, "shift")
	}
	if k.Alt {
		parts = append(parts, "alt")
	}
	if k.Win {
		parts = append(parts, "win")
	}
	if k.Key != "" {
		parts = append(parts, k.Key)
	}
	return strings.Join(parts, "+")
}
