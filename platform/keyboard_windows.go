//go:build windows

package platform

import (
	"fmt"
	"time"
	"unsafe"
)

var (
	sendInput      = user32.NewProc("SendInput")
	mapVirtualKeyW = user32.NewProc("MapVirtualKeyW")
)

const (
	inputKeyboard  = 1
	keyeventfKeyup = 0x0002
	mapvkVkToVsc   = 0
	vkC            = 0x43
	vkV            = 0x56
)

type keyboardInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type input struct {
	inputType uint32
	ki        keyboardInput
	padding   [8]byte // Padding to match C struct size
}

// WindowsKeyboard implements the Keyboard interface for Windows
type WindowsKeyboard struct{}

// NewKeyboard creates a new Windows keyboard instance
func NewKeyboard() Keyboard {
	return &WindowsKeyboard{}
}

// Copy simulates Ctrl+C
func (k *WindowsKeyboard) Copy() error {
	return sendCtrlChord(vkC)
}

// Paste simulates Ctrl+V
func (k *WindowsKeyboard) Paste() error {
	return sendCtrlChord(vkV)
}

// Pressed reports whether any key of the combo is physically held down
func (k *WindowsKeyboard) Pressed(combo KeyCombo) bool {
	if combo.Ctrl && isKeyPressed(vkCtrl) {
		return true
	}
	if combo.Shift && isKeyPressed(vkShift) {
		return true
	}
	if combo.Alt && isKeyPressed(vkAlt) {
		return true
	}
	if combo.Win && (isKeyPressed(vkLwin) || isKeyPressed(vkRwin)) {
		return true
	}
	return combo.Key != 0 && isKeyPressed(combo.Key)
}

// sendCtrlChord sends Ctrl+<vk> with scan codes for better compatibility
// with elevated applications
func sendCtrlChord(vk uint16) error {
	ctrlScan, _, _ := mapVirtualKeyW.Call(vkCtrl, mapvkVkToVsc)
	keyScan, _, _ := mapVirtualKeyW.Call(uintptr(vk), mapvkVkToVsc)

	key := func(code uint16, scan uintptr, flags uint32) input {
		return input{
			inputType: inputKeyboard,
			ki: keyboardInput{
				wVk:     code,
				wScan:   uint16(scan),
				dwFlags: flags,
			},
		}
	}

	inputs := []input{
		key(vkCtrl, ctrlScan, 0),
		key(vk, keyScan, 0),
		key(vk, keyScan, keyeventfKeyup),
		key(vkCtrl, ctrlScan, keyeventfKeyup),
	}

	// Send all inputs at once for better atomicity
	ret, _, err := sendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if ret == 0 {
		return fmt.Errorf("SendInput: %w", err)
	}

	// Small delay to ensure input is processed
	time.Sleep(20 * time.Millisecond)

	return nil
}
