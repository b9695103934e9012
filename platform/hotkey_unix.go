//go:build linux || darwin

package platform

import (
	"context"
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

// DesignHotkey implements the Hotkey interface with golang.design/x/hotkey.
// On macOS the process must run an application event loop on the main
// thread (the tray provides one).
type DesignHotkey struct {
	mu  sync.Mutex
	hks []*hotkey.Hotkey
}

// NewHotkey creates a new hotkey listener
func NewHotkey() Hotkey {
	return &DesignHotkey{}
}

// Listen registers every binding and forwards its key events
func (h *DesignHotkey) Listen(ctx context.Context, bindings []Binding) (<-chan Event, error) {
	if len(bindings) == 0 {
		return nil, fmt.Errorf("no hotkey bindings")
	}

	events := make(chan Event, 10)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, b := range bindings {
		hk := hotkey.New(modifiers(b.Combo), hotkey.Key(b.Combo.Key))
		if err := hk.Register(); err != nil {
			h.unregisterLocked()
			return nil, fmt.Errorf("register hotkey %q: %w", b.Name, err)
		}
		h.hks = append(h.hks, hk)
		go forward(ctx, hk, b, events)
	}

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		h.unregisterLocked()
	}()

	return events, nil
}

func (h *DesignHotkey) unregisterLocked() {
	for _, hk := range h.hks {
		hk.Unregister()
	}
	h.hks = nil
}

func forward(ctx context.Context, hk *hotkey.Hotkey, b Binding, events chan<- Event) {
	for {
		var evt Event
		select {
		case <-ctx.Done():
			return
		case <-hk.Keydown():
			evt = Event{Type: Pressed, Binding: b.Name}
		case <-hk.Keyup():
			evt = Event{Type: Released, Binding: b.Name}
		}
		select {
		case events <- evt:
		default:
		}
	}
}
