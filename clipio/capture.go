package clipio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jinzheng8115/smartanychat/platform"
	"github.com/jinzheng8115/smartanychat/postprocess"
)

// Capture copies the focused application's selection through the
// clipboard and returns it. combo is the hotkey that triggered the capture;
// its keys must be released before the copy chord is sent.
//
// An empty Text means nothing was selected, or the copy chord had no
// visible effect; the two cannot be told apart.
func (p *Protocol) Capture(combo platform.KeyCombo) CaptureResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	prior := p.snapshot()

	p.awaitRelease(combo)

	// An empty baseline makes "copy produced nothing" observable.
	if err := p.clipboard.Clear(); err != nil {
		p.logger.Warn("Failed to clear clipboard before copy", "error", err)
	}

	p.sleep(p.delays.PreCopy)
	if err := p.keyboard.Copy(); err != nil {
		p.logger.Warn("Failed to send copy chord", "error", err)
	}
	p.sleep(p.delays.CopySettle)

	text, err := p.readSelection()

	p.restore(prior)

	if err != nil {
		return CaptureResult{Err: err}
	}

	text = postprocess.Sanitize(text)
	if strings.TrimSpace(text) == "" {
		return CaptureResult{}
	}
	return CaptureResult{Text: text}
}

// readSelection polls the clipboard until it holds non-blank text or the
// attempts run out. It fails only if every attempt failed to read.
func (p *Protocol) readSelection() (string, error) {
	attempts := p.delays.ReadAttempts
	failures := 0
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := p.clipboard.Read()
		switch {
		case err == nil && strings.TrimSpace(text) != "":
			return text, nil
		case err != nil && !errors.Is(err, platform.ErrNoText):
			failures++
			lastErr = err
			p.logger.Debug("Clipboard busy while reading selection", "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			p.sleep(p.delays.RetryInterval)
		}
	}

	if failures == attempts {
		return "", fmt.Errorf("read selection after %d attempts: %w", attempts, lastErr)
	}
	return "", nil
}
