package clipio

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jinzheng8115/smartanychat/platform"
)

// fakeClipboard is an in-memory clipboard that logs every call, shared
// with fakeKeyboard so the log shows the full interleaving.
type fakeClipboard struct {
	mu        sync.Mutex
	text      string
	has       bool
	reads     int
	failReads map[int]error // 1-based read number -> error
	writeErr  error
	calls     []string
}

func newFakeClipboard(text string) *fakeClipboard {
	return &fakeClipboard{text: text, has: text != ""}
}

func (c *fakeClipboard) Read() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	c.calls = append(c.calls, "read")
	if err, ok := c.failReads[c.reads]; ok {
		return "", err
	}
	if !c.has {
		return "", platform.ErrNoText
	}
	return c.text, nil
}

func (c *fakeClipboard) Write(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "write:"+text)
	if c.writeErr != nil {
		return c.writeErr
	}
	c.text, c.has = text, true
	return nil
}

func (c *fakeClipboard) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "clear")
	c.text, c.has = "", false
	return nil
}

func (c *fakeClipboard) record(call string) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
}

func (c *fakeClipboard) current() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.has
}

func (c *fakeClipboard) log() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// fakeKeyboard plays the focused application: Copy puts the selection on
// the clipboard, Paste records what the clipboard held at that moment.
type fakeKeyboard struct {
	mu        sync.Mutex
	clipboard *fakeClipboard
	selection string
	copyErr   error
	held      int // Pressed returns true this many times
	polls     int
	pasted    []string
}

func (k *fakeKeyboard) Copy() error {
	k.clipboard.record("copy")
	if k.copyErr != nil {
		return k.copyErr
	}
	if k.selection != "" {
		k.clipboard.mu.Lock()
		k.clipboard.text, k.clipboard.has = k.selection, true
		k.clipboard.mu.Unlock()
	}
	return nil
}

func (k *fakeKeyboard) Paste() error {
	k.clipboard.record("paste")
	text, _ := k.clipboard.current()
	k.mu.Lock()
	k.pasted = append(k.pasted, text)
	k.mu.Unlock()
	return nil
}

func (k *fakeKeyboard) Pressed(platform.KeyCombo) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.polls++
	return k.polls <= k.held
}

type sleepRecorder struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.mu.Lock()
	s.slept = append(s.slept, d)
	s.mu.Unlock()
}

func (s *sleepRecorder) durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProtocol(cb *fakeClipboard, kb *fakeKeyboard) (*Protocol, *sleepRecorder) {
	rec := &sleepRecorder{}
	return New(cb, kb, DefaultDelays(), discardLogger(), WithSleep(rec.sleep)), rec
}
