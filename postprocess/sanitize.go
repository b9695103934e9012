package postprocess

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Sanitize repairs clipboard text: invalid UTF-8 sequences and control
// characters other than newline and tab are dropped, CRLF line endings
// become LF and the result is NFC-normalised. It never fails.
func Sanitize(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == '\r' {
			return '\n'
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	return norm.NFC.String(text)
}

// SanitizeProcessor wraps Sanitize as a pipeline stage
func SanitizeProcessor() Processor {
	return func(_ context.Context, text string) (string, error) {
		return Sanitize(text), nil
	}
}

// TrimProcessor removes leading and trailing whitespace
func TrimProcessor() Processor {
	return func(_ context.Context, text string) (string, error) {
		return strings.TrimSpace(text), nil
	}
}
