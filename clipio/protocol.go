// Package clipio borrows the system clipboard to read the user's current
// selection and to paste generated text at the cursor, restoring whatever
// the clipboard held before.
//
// The OS offers no completion signal for a synthetic copy or paste, so both
// protocols wait fixed settle delays between steps. The delays are lower
// bounds tuned by hand, not guarantees; a slow target application can still
// miss them.
package clipio

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jinzheng8115/smartanychat/platform"
)

// ErrWriteFailed marks an injection that could not place its text on the
// clipboard. Nothing is pasted in that case.
var ErrWriteFailed = errors.New("write text to clipboard")

// Delays are the fixed waits between protocol steps.
type Delays struct {
	PreCopy       time.Duration // after clearing, before the copy chord
	CopySettle    time.Duration // after the copy chord, before reading
	RetryInterval time.Duration // between selection read attempts
	ReadAttempts  int
	PasteReady    time.Duration // after writing, before the paste chord
	PasteSettle   time.Duration // after the paste chord, before restoring
	ReleasePoll   time.Duration // hotkey release poll interval
}

// DefaultDelays returns the delays used on a typical desktop.
func DefaultDelays() Delays {
	return Delays{
		PreCopy:       300 * time.Millisecond,
		CopySettle:    500 * time.Millisecond,
		RetryInterval: 300 * time.Millisecond,
		ReadAttempts:  3,
		PasteReady:    200 * time.Millisecond,
		PasteSettle:   200 * time.Millisecond,
		ReleasePoll:   100 * time.Millisecond,
	}
}

// Snapshot is the clipboard text observed at one instant. Valid is false
// when the clipboard could not be read at all; an empty clipboard is a
// valid snapshot with empty Text.
type Snapshot struct {
	Text  string
	Valid bool
}

// CaptureResult is the outcome of Capture. Err is set only when the
// clipboard could not be read on any attempt.
type CaptureResult struct {
	Text string
	Err  error
}

// Empty reports whether there is nothing to send on.
func (r CaptureResult) Empty() bool {
	return r.Err != nil || strings.TrimSpace(r.Text) == ""
}

// InjectionOutcome is the outcome of Inject.
type InjectionOutcome struct {
	Delivered bool
	Err       error
}

// Protocol runs capture and injection against one clipboard and keyboard.
// Runs are serialised: a second Capture or Inject waits for the first to
// finish.
type Protocol struct {
	mu        sync.Mutex
	clipboard platform.Clipboard
	keyboard  platform.Keyboard
	delays    Delays
	sleep     func(time.Duration)
	logger    *slog.Logger
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithSleep replaces time.Sleep for every wait the protocol performs.
func WithSleep(fn func(time.Duration)) Option {
	return func(p *Protocol) {
		p.sleep = fn
	}
}

// New creates a Protocol.
func New(clipboard platform.Clipboard, keyboard platform.Keyboard, delays Delays, logger *slog.Logger, opts ...Option) *Protocol {
	if delays.ReadAttempts < 1 {
		delays.ReadAttempts = 1
	}
	p := &Protocol{
		clipboard: clipboard,
		keyboard:  keyboard,
		delays:    delays,
		sleep:     time.Sleep,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// snapshot reads the clipboard without failing.
func (p *Protocol) snapshot() Snapshot {
	text, err := p.clipboard.Read()
	switch {
	case err == nil:
		return Snapshot{Text: text, Valid: true}
	case errors.Is(err, platform.ErrNoText):
		return Snapshot{Valid: true}
	default:
		p.logger.Warn("Failed to read clipboard, prior content will not be restored", "error", err)
		return Snapshot{}
	}
}

// restore puts prior back on the clipboard. Failures are logged only.
func (p *Protocol) restore(prior Snapshot) {
	if !prior.Valid {
		return
	}

	var err error
	if prior.Text == "" {
		err = p.clipboard.Clear()
	} else {
		err = p.clipboard.Write(prior.Text)
	}
	if err != nil {
		p.logger.Warn("Failed to restore clipboard", "error", err)
	}
}

// awaitRelease blocks until no key of combo is held. There is no timeout:
// a stuck key stalls the caller.
func (p *Protocol) awaitRelease(combo platform.KeyCombo) {
	polls := 0
	for p.keyboard.Pressed(combo) {
		if polls == 0 {
			p.logger.Debug("Waiting for hotkey release")
		}
		polls++
		p.sleep(p.delays.ReleasePoll)
	}
	if polls > 0 {
		p.logger.Debug("Hotkey released", "polls", polls)
	}
}
