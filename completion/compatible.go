package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jinzheng8115/smartanychat/config"
)

// CompatibleClient talks to any server exposing an OpenAI-style
// /v1/chat/completions endpoint over plain HTTP.
type CompatibleClient struct {
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

// NewCompatibleClient creates a new client for an OpenAI-compatible server
func NewCompatibleClient(apiKey, baseURL, model string) *CompatibleClient {
	return &CompatibleClient{
		apiKey:   apiKey,
		endpoint: chatCompletionsURL(baseURL),
		model:    model,
		client: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Name returns the provider name
func (c *CompatibleClient) Name() string {
	return config.APITypeCompatible
}

// Model returns the configured model
func (c *CompatibleClient) Model() string {
	return c.model
}

// Chat posts a non-streaming chat completion request
func (c *CompatibleClient) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	reqBody := map[string]interface{}{
		"model":       c.model,
		"messages":    messages,
		"temperature": opts.Temperature,
		"stream":      false,
	}
	if opts.MaxTokens > 0 {
		reqBody["max_tokens"] = opts.MaxTokens
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{
			Provider:   c.Name(),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", ErrEmptyReply
	}

	return result.Choices[0].Message.Content, nil
}

// chatCompletionsURL accepts a bare host, a /v1 base or the full endpoint
func chatCompletionsURL(baseURL string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if strings.Contains(baseURL, "/v1/chat/completions") {
		return baseURL
	}
	if i := strings.Index(baseURL, "/v1"); i >= 0 {
		return baseURL[:i] + "/v1/chat/completions"
	}
	return baseURL + "/v1/chat/completions"
}
