package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jinzheng8115/smartanychat/config"
)

// ErrorMarker prefixes every reply that reports a failure instead of model
// output. Such replies are pasted like any other text but never enter the
// conversation history.
const ErrorMarker = "request error:"

// StatusError is a non-2xx response from a backend
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsErrorReply reports whether text is a failure report produced by
// ErrorReply
func IsErrorReply(text string) bool {
	return strings.HasPrefix(text, ErrorMarker)
}

// ErrorReply turns a failed request into text the user can read where the
// reply would have been pasted.
func ErrorReply(c Client, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %v\n", ErrorMarker, err)
	fmt.Fprintf(&b, "provider: %s\nmodel: %s", c.Name(), c.Model())

	if h := hint(c.Name(), err); h != "" {
		b.WriteString("\n\n")
		b.WriteString(h)
	}
	return b.String()
}

func hint(provider string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "The request timed out. Check the network or try a smaller max_tokens."
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 401, 403:
			return "The backend rejected the API key. Check api_key in the configuration."
		case 429:
			return "The backend is rate limiting requests. Wait a moment and retry."
		}
	}

	if provider != config.APITypeOllama {
		return ""
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"):
		return "Could not connect to the Ollama service.\n" +
			"1. Start or restart Ollama\n" +
			"2. Check that port 11434 is reachable\n" +
			"3. Look at the Ollama service log"
	case isModelNotFound(err), strings.Contains(msg, "no such file or directory"):
		return "The model is not installed.\n" +
			"1. Run 'ollama pull <model>' to download it\n" +
			"2. Check the model name in the configuration"
	case strings.Contains(msg, "out of memory"),
		strings.Contains(msg, "resource exhausted"),
		strings.Contains(msg, "resource_exhausted"):
		return "Not enough memory to run the model.\n" +
			"1. Close other programs using RAM or GPU memory\n" +
			"2. Use a smaller model or context length\n" +
			"3. Switch Ollama to CPU mode if the GPU is full"
	}
	return ""
}

// isModelNotFound matches Ollama's "model \"x\" not found" responses
func isModelNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "model") && strings.Contains(msg, "not found")
}
