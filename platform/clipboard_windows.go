//go:build windows

package platform

import (
	"fmt"
	"log/slog"
	"strings"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32           = windows.NewLazySystemDLL("user32.dll")
	kernel32         = windows.NewLazySystemDLL("kernel32.dll")
	openClipboard    = user32.NewProc("OpenClipboard")
	closeClipboard   = user32.NewProc("CloseClipboard")
	emptyClipboard   = user32.NewProc("EmptyClipboard")
	getClipboardData = user32.NewProc("GetClipboardData")
	setClipboardData = user32.NewProc("SetClipboardData")
	globalAlloc      = kernel32.NewProc("GlobalAlloc")
	globalFree       = kernel32.NewProc("GlobalFree")
	globalLock       = kernel32.NewProc("GlobalLock")
	globalUnlock     = kernel32.NewProc("GlobalUnlock")
)

const (
	cfUnicodeText = 13
	gmemMoveable  = 0x0002

	openAttempts = 10
	openBackoff  = 10 * time.Millisecond
)

// WindowsClipboard implements the Clipboard interface for Windows
type WindowsClipboard struct{}

// NewClipboard creates a new Windows clipboard instance
func NewClipboard(_ *slog.Logger) Clipboard {
	return &WindowsClipboard{}
}

// Read retrieves text from the clipboard
func (c *WindowsClipboard) Read() (string, error) {
	if err := c.open(); err != nil {
		return "", err
	}
	defer c.close()

	h, _, err := getClipboardData.Call(cfUnicodeText)
	if h == 0 {
		if err != nil && err != syscall.Errno(0) {
			return "", fmt.Errorf("GetClipboardData: %w", err)
		}
		return "", ErrNoText
	}

	l, _, err := globalLock.Call(h)
	if l == 0 {
		return "", fmt.Errorf("GlobalLock: %w", err)
	}
	defer globalUnlock.Call(h)

	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(l))), nil
}

// Write empties the clipboard and sets text in one open/close cycle
func (c *WindowsClipboard) Write(text string) error {
	// UTF16FromString rejects embedded NULs; drop them instead of failing.
	utf16, err := windows.UTF16FromString(strings.ReplaceAll(text, "\x00", ""))
	if err != nil {
		return fmt.Errorf("UTF16 conversion: %w", err)
	}

	if err := c.open(); err != nil {
		return err
	}
	defer c.close()

	if r, _, err := emptyClipboard.Call(); r == 0 {
		return fmt.Errorf("EmptyClipboard: %w", err)
	}

	n := len(utf16) * 2 // UTF-16 uses 2 bytes per character
	h, _, err := globalAlloc.Call(gmemMoveable, uintptr(n))
	if h == 0 {
		return fmt.Errorf("GlobalAlloc: %w", err)
	}

	l, _, err := globalLock.Call(h)
	if l == 0 {
		globalFree.Call(h)
		return fmt.Errorf("GlobalLock: %w", err)
	}

	dest := unsafe.Slice((*uint16)(unsafe.Pointer(l)), len(utf16))
	copy(dest, utf16)

	globalUnlock.Call(h)

	if r, _, err := setClipboardData.Call(cfUnicodeText, h); r == 0 {
		// Ownership only transfers to the system on success.
		globalFree.Call(h)
		return fmt.Errorf("SetClipboardData: %w", err)
	}

	return nil
}

// Clear empties the clipboard without setting new content
func (c *WindowsClipboard) Clear() error {
	if err := c.open(); err != nil {
		return err
	}
	defer c.close()

	if r, _, err := emptyClipboard.Call(); r == 0 {
		return fmt.Errorf("EmptyClipboard: %w", err)
	}
	return nil
}

func (c *WindowsClipboard) open() error {
	for i := 0; i < openAttempts; i++ {
		r, _, _ := openClipboard.Call(0)
		if r != 0 {
			return nil
		}
		time.Sleep(openBackoff)
	}
	return fmt.Errorf("open clipboard after %d attempts: %w", openAttempts, ErrAccessDenied)
}

func (c *WindowsClipboard) close() {
	closeClipboard.Call()
}
