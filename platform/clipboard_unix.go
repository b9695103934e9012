//go:build linux || darwin

package platform

import (
	"fmt"
	"log/slog"

	atotto "github.com/atotto/clipboard"
	"golang.design/x/clipboard"
)

// NewClipboard returns the system clipboard backed by golang.design/x/clipboard,
// or the command-line tool backend (pbcopy, xclip, xsel, wl-clipboard) when
// the native backend cannot initialise.
func NewClipboard(logger *slog.Logger) Clipboard {
	if err := clipboard.Init(); err != nil {
		logger.Warn("native clipboard unavailable, falling back to command-line tools", "error", err)
		return &toolClipboard{}
	}
	return &nativeClipboard{}
}

type nativeClipboard struct{}

func (c *nativeClipboard) Read() (string, error) {
	b := clipboard.Read(clipboard.FmtText)
	if len(b) == 0 {
		return "", ErrNoText
	}
	return string(b), nil
}

func (c *nativeClipboard) Write(text string) error {
	if clipboard.Write(clipboard.FmtText, []byte(text)) == nil {
		return fmt.Errorf("write clipboard: %w", ErrAccessDenied)
	}
	return nil
}

func (c *nativeClipboard) Clear() error {
	if clipboard.Write(clipboard.FmtText, []byte{}) == nil {
		return fmt.Errorf("clear clipboard: %w", ErrAccessDenied)
	}
	return nil
}

type toolClipboard struct{}

func (c *toolClipboard) Read() (string, error) {
	text, err := atotto.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %v: %w", err, ErrAccessDenied)
	}
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func (c *toolClipboard) Write(text string) error {
	if err := atotto.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %v: %w", err, ErrAccessDenied)
	}
	return nil
}

func (c *toolClipboard) Clear() error {
	return c.Write("")
}
