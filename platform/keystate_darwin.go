//go:build darwin

package platform

/*
#cgo LDFLAGS: -framework ApplicationServices
#include <ApplicationServices/ApplicationServices.h>
*/
import "C"

// CGEventFlags modifier masks
const (
	cgFlagShift     = 0x00020000
	cgFlagControl   = 0x00040000
	cgFlagAlternate = 0x00080000
	cgFlagCommand   = 0x00100000
)

// keyState reads the combined session key state from Quartz
type keyState struct{}

func (keyState) pressed(combo KeyCombo) bool {
	flags := uint64(C.CGEventSourceFlagsState(C.kCGEventSourceStateCombinedSessionState))
	if modifiersHeld(flags, combo) {
		return true
	}
	if combo.Key == 0 {
		return false
	}
	return bool(C.CGEventSourceKeyState(C.kCGEventSourceStateCombinedSessionState, C.CGKeyCode(combo.Key)))
}

// modifiersHeld reports whether flags has any modifier of combo set
func modifiersHeld(flags uint64, combo KeyCombo) bool {
	return combo.Ctrl && flags&cgFlagControl != 0 ||
		combo.Shift && flags&cgFlagShift != 0 ||
		combo.Alt && flags&cgFlagAlternate != 0 ||
		combo.Win && flags&cgFlagCommand != 0
}
