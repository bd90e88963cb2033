package nlp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/soundprediction/recall/pkg/types"
)

const (
	defaultAnthropicModel     = "claude-3-5-haiku-latest"
	defaultAnthropicMaxTokens = 1024
)

// AnthropicClient implements the Client interface for Anthropic's models.
type AnthropicClient struct {
	client anthropic.Client
	config Config
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string, config Config) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		if err := validateBaseURL(config.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Model == "" {
		config.Model = defaultAnthropicModel
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		config: config,
	}, nil
}

// Chat sends the conversation to the Messages API. System messages are
// joined into the system prompt.
func (c *AnthropicClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	params := c.buildParams(messages)

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			var header http.Header
			if apiErr.Response != nil {
				header = apiErr.Response.Header
			}
			return nil, providerError("anthropic", apiErr.StatusCode, parseRetryAfter(header), err)
		}
		return nil, providerError("anthropic", 0, 0, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 && resp.StopReason != anthropic.StopReasonMaxTokens {
		return nil, fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}

	return &types.Response{
		Content:      text.String(),
		FinishReason: string(resp.StopReason),
		Model:        string(resp.Model),
		TokensUsed: &types.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

func (c *AnthropicClient) buildParams(messages []types.Message) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	converted := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	maxTokens := int64(defaultAnthropicMaxTokens)
	if c.config.MaxTokens != nil {
		maxTokens = int64(*c.config.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: maxTokens,
		Messages:  converted,
		System:    system,
	}
	if c.config.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*c.config.Temperature))
	}
	if c.config.TopP != nil {
		params.TopP = anthropic.Float(float64(*c.config.TopP))
	}
	if len(c.config.Stop) > 0 {
		params.StopSequences = c.config.Stop
	}
	return params
}

// Close is a no-op; the SDK client holds no resources.
func (c *AnthropicClient) Close() error {
	return nil
}
