//go:build windows

package platform

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	setWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	callNextHookEx      = user32.NewProc("CallNextHookEx")
	unhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	peekMessage         = user32.NewProc("PeekMessageW")
	getAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
)

const (
	whKeyboardLL = 13
	wmKeydown    = 0x0100
	wmSyskeydown = 0x0104
	pmRemove     = 0x0001
)

const (
	vkShift = 0x10
	vkCtrl  = 0x11
	vkAlt   = 0x12
	vkLwin  = 0x5B // Left Windows key
	vkRwin  = 0x5C // Right Windows key

	vkLshift   = 0xA0
	vkRshift   = 0xA1
	vkLcontrol = 0xA2
	vkRcontrol = 0xA3
	vkLmenu    = 0xA4
	vkRmenu    = 0xA5
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

// WindowsHotkey implements the Hotkey interface for Windows using a
// low-level keyboard hook
type WindowsHotkey struct {
	mu       sync.Mutex
	bindings []Binding
	pressed  map[string]bool
	events   chan Event

	install func(proc uintptr) (uintptr, error)
	remove  func(hook uintptr)
}

// NewHotkey creates a new Windows hotkey listener
func NewHotkey() Hotkey {
	return &WindowsHotkey{install: installKeyboardHook, remove: removeHook}
}

func installKeyboardHook(proc uintptr) (uintptr, error) {
	hook, _, err := setWindowsHookEx.Call(whKeyboardLL, proc, 0, 0)
	if hook == 0 {
		return 0, fmt.Errorf("SetWindowsHookEx: %w", err)
	}
	return hook, nil
}

func removeHook(hook uintptr) {
	unhookWindowsHookEx.Call(hook)
}

// Listen starts listening for the given bindings
func (h *WindowsHotkey) Listen(ctx context.Context, bindings []Binding) (<-chan Event, error) {
	if len(bindings) == 0 {
		return nil, fmt.Errorf("no hotkey bindings")
	}

	h.mu.Lock()
	h.bindings = append([]Binding(nil), bindings...)
	h.pressed = make(map[string]bool, len(bindings))
	h.events = make(chan Event, 10)
	h.mu.Unlock()

	done := make(chan struct{})

	errCh := make(chan error, 1)
	go h.runHook(done, errCh)

	select {
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		// runHook removes the hook once it is installed and sees done.
		close(done)
		return nil, ctx.Err()
	}

	go func() {
		<-ctx.Done()
		close(done)
	}()

	return h.events, nil
}

// runHook installs the hook and pumps messages until done is closed, then
// removes it.
func (h *WindowsHotkey) runHook(done <-chan struct{}, errCh chan<- error) {
	// The hook is bound to the installing thread's message queue.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	hookProc := func(nCode int32, wParam uintptr, lParam uintptr) uintptr {
		if nCode >= 0 {
			kbInfo := (*kbdllhookstruct)(unsafe.Pointer(lParam))
			h.handleKeyEvent(wParam, kbInfo)
		}
		r, _, _ := callNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return r
	}

	hook, err := h.install(windows.NewCallback(hookProc))
	if err != nil {
		errCh <- err
		return
	}
	defer h.remove(hook)

	errCh <- nil

	var m msg
	for {
		select {
		case <-done:
			return
		default:
			r, _, _ := peekMessage.Call(
				uintptr(unsafe.Pointer(&m)),
				0,
				0,
				0,
				pmRemove,
			)
			if r != 0 {
				continue
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func (h *WindowsHotkey) handleKeyEvent(wParam uintptr, kbInfo *kbdllhookstruct) {
	isKeyDown := wParam == wmKeydown || wParam == wmSyskeydown
	vk := normalizeVK(kbInfo.vkCode)

	for _, b := range h.bindings {
		if !b.Combo.involves(vk) {
			continue
		}

		if isKeyDown {
			// Modifier-only combos fire once every modifier is held; keyed
			// combos fire on the key itself.
			if b.Combo.Key != 0 && vk != uint32(b.Combo.Key) {
				continue
			}
			if h.checkModifiers(b.Combo) {
				h.transition(b.Name, true)
			}
			continue
		}

		h.transition(b.Name, false)
	}
}

// transition emits Pressed/Released on state edges only, so auto-repeat
// keydowns do not re-trigger a binding.
func (h *WindowsHotkey) transition(name string, down bool) {
	h.mu.Lock()
	if h.pressed[name] == down {
		h.mu.Unlock()
		return
	}
	h.pressed[name] = down
	h.mu.Unlock()

	evt := Event{Type: Released, Binding: name}
	if down {
		evt.Type = Pressed
	}
	select {
	case h.events <- evt:
	default:
	}
}

func (h *WindowsHotkey) checkModifiers(combo KeyCombo) bool {
	ctrl := isKeyPressed(vkCtrl)
	shift := isKeyPressed(vkShift)
	alt := isKeyPressed(vkAlt)
	win := isKeyPressed(vkLwin) || isKeyPressed(vkRwin)

	return ctrl == combo.Ctrl &&
		shift == combo.Shift &&
		alt == combo.Alt &&
		win == combo.Win
}

// involves reports whether vk is the combo's key or one of its modifiers
func (c KeyCombo) involves(vk uint32) bool {
	switch vk {
	case vkCtrl:
		return c.Ctrl
	case vkShift:
		return c.Shift
	case vkAlt:
		return c.Alt
	case vkLwin, vkRwin:
		return c.Win
	}
	return c.Key != 0 && vk == uint32(c.Key)
}

// normalizeVK folds left/right modifier codes reported by the hook into
// the generic ones.
func normalizeVK(vk uint32) uint32 {
	switch vk {
	case vkLshift, vkRshift:
		return vkShift
	case vkLcontrol, vkRcontrol:
		return vkCtrl
	case vkLmenu, vkRmenu:
		return vkAlt
	}
	return vk
}

func isKeyPressed(vk int) bool {
	r, _, _ := getAsyncKeyState.Call(uintptr(vk))
	return r&0x8000 != 0
}

// KeyCode returns the Windows virtual key code for a key name.
// Returns 0 for empty string (modifier-only hotkey)
func KeyCode(key string) (int, error) {
	if key == "" {
		return 0, nil
	}

	codes := map[string]int{
		"a": 0x41, "b": 0x42, "c": 0x43, "d": 0x44, "e": 0x45,
		"f": 0x46, "g": 0x47, "h": 0x48, "i": 0x49, "j": 0x4A,
		"k": 0x4B, "l": 0x4C, "m": 0x4D, "n": 0x4E, "o": 0x4F,
		"p": 0x50, "q": 0x51, "r": 0x52, "s": 0x53, "t": 0x54,
		"u": 0x55, "v": 0x56, "w": 0x57, "x": 0x58, "y": 0x59,
		"z": 0x5A,
		"0": 0x30, "1": 0x31, "2": 0x32, "3": 0x33, "4": 0x34,
		"5": 0x35, "6": 0x36, "7": 0x37, "8": 0x38, "9": 0x39,
		"f1": 0x70, "f2": 0x71, "f3": 0x72, "f4": 0x73,
		"f5": 0x74, "f6": 0x75, "f7": 0x76, "f8": 0x77,
		"f9": 0x78, "f10": 0x79, "f11": 0x7A, "f12": 0x7B,
		"space": 0x20, "enter": 0x0D, "esc": 0x1B, "escape": 0x1B,
		"tab": 0x09, "backspace": 0x08,
		"\\": 0xDC, "/": 0xBF, ";": 0xBA, "'": 0xDE,
		",": 0xBC, ".": 0xBE, "-": 0xBD, "=": 0xBB,
		"[": 0xDB, "]": 0xDD, "`": 0xC0,
	}

	if code, ok := codes[strings.ToLower(key)]; ok {
		return code, nil
	}

	return 0, fmt.Errorf("unknown key: %s", key)
}
