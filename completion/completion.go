// Package completion sends prompts to a chat-completion backend and keeps
// the conversation the hotkey actions build on.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jinzheng8115/smartanychat/config"
)

// requestTimeout bounds one chat request, including the Ollama retry.
const requestTimeout = 30 * time.Second

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyReply is returned when the backend answered without any text.
var ErrEmptyReply = errors.New("backend returned an empty reply")

// Message is one chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are the sampling parameters for one request
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Client is a chat-completion backend
type Client interface {
	Name() string
	Model() string
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
}

// NewClient creates the client for the configured API type
func NewClient(apiType string, api config.APIConfig, logger *slog.Logger) (Client, error) {
	switch apiType {
	case config.APITypeOpenAI:
		if api.APIKey == "" {
			return nil, fmt.Errorf("api_key is required for the openai backend")
		}
		return NewOpenAIClient(api.APIKey, api.BaseURL, api.Model), nil
	case config.APITypeCompatible:
		if api.BaseURL == "" || api.Model == "" {
			return nil, fmt.Errorf("base_url and model are required for the compatible backend")
		}
		return NewCompatibleClient(api.APIKey, api.BaseURL, api.Model), nil
	case config.APITypeOllama:
		if api.Model == "" {
			return nil, fmt.Errorf("model is required for the ollama backend")
		}
		return NewOllamaClient(api.BaseURL, api.Model, logger), nil
	default:
		return nil, fmt.Errorf("unknown api type: %s", apiType)
	}
}
