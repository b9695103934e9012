package clipio

import "fmt"

// Inject pastes text at the cursor of the focused application and then
// restores the previous clipboard content. text is used verbatim.
//
// Only the clipboard write is fatal: without it the paste chord would
// paste stale data.
func (p *Protocol) Inject(text string) InjectionOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	prior := p.snapshot()

	if err := p.clipboard.Write(text); err != nil {
		return InjectionOutcome{Err: fmt.Errorf("%w: %w", ErrWriteFailed, err)}
	}

	p.sleep(p.delays.PasteReady)
	if err := p.keyboard.Paste(); err != nil {
		p.logger.Warn("Failed to send paste chord", "error", err)
	}
	p.sleep(p.delays.PasteSettle)

	p.restore(prior)

	return InjectionOutcome{Delivered: true}
}
