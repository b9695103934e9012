package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jinzheng8115/smartanychat/config"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaClient talks to a local Ollama runner
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(baseURL, model string, logger *slog.Logger) *OllamaClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

// Name returns the provider name
func (c *OllamaClient) Name() string {
	return config.APITypeOllama
}

// Model returns the configured model
func (c *OllamaClient) Model() string {
	return c.model
}

// Chat sends messages to /api/chat. A tagged model that is not installed
// is retried once under its base name.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	reply, err := c.chat(ctx, c.model, messages, opts)
	if err == nil {
		return reply, nil
	}

	base, _, tagged := strings.Cut(c.model, ":")
	if !tagged || !isModelNotFound(err) {
		return "", err
	}

	c.logger.Warn("Model not found, retrying with base model", "model", c.model, "base_model", base)
	return c.chat(ctx, base, messages, opts)
}

func (c *OllamaClient) chat(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	options := map[string]interface{}{
		"temperature": opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}

	reqBody := struct {
		Model    string                 `json:"model"`
		Messages []Message              `json:"messages"`
		Stream   bool                   `json:"stream"`
		Options  map[string]interface{} `json:"options"`
	}{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options:  options,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{
			Provider:   c.Name(),
			StatusCode: resp.StatusCode,
			Message:    ollamaErrorMessage(raw),
		}
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if result.Error != "" {
		return "", errors.New(result.Error)
	}
	if strings.TrimSpace(result.Message.Content) == "" {
		return "", ErrEmptyReply
	}
	return result.Message.Content, nil
}

// ollamaErrorMessage extracts {"error": "..."} bodies, falling back to the
// raw text
func ollamaErrorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
