package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/jinzheng8115/smartanychat/config"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient uses the official OpenAI SDK
type OpenAIClient struct {
	client  openai.Client
	model   string
	baseURL string
}

// NewOpenAIClient creates a new OpenAI client. baseURL may omit the /v1
// suffix.
func NewOpenAIClient(apiKey, baseURL, model string, opts ...option.RequestOption) *OpenAIClient {
	baseURL = normalizeOpenAIBaseURL(baseURL)

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithRequestTimeout(requestTimeout),
		option.WithMaxRetries(0),
	}
	reqOpts = append(reqOpts, opts...)

	return &OpenAIClient{
		client:  openai.NewClient(reqOpts...),
		model:   model,
		baseURL: baseURL,
	}
}

// Name returns the provider name
func (c *OpenAIClient) Name() string {
	return config.APITypeOpenAI
}

// Model returns the configured model
func (c *OpenAIClient) Model() string {
	return c.model
}

// Chat sends messages and returns the first choice
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion at %s: %w", c.baseURL, err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	reply := resp.Choices[0].Message.Content
	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func normalizeOpenAIBaseURL(baseURL string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return defaultOpenAIBaseURL
	}
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}
	return baseURL
}
