package nlp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/soundprediction/recall/pkg/types"
)

const (
	defaultOpenAIModel     = openai.GPT4oMini
	defaultCompatibleModel = "gpt-3.5-turbo"
	placeholderAPIKey      = "unused"
)

// OpenAIClient talks to the OpenAI chat completions API or any server that
// speaks it (Ollama, vLLM, LiteLLM).
type OpenAIClient struct {
	client   *openai.Client
	config   Config
	provider string
}

// NewOpenAIClient creates an OpenAIClient. With a BaseURL set, a missing
// API key is allowed and "/v1" is appended unless the URL already ends in
// an API path.
func NewOpenAIClient(apiKey string, config Config) (*OpenAIClient, error) {
	c := &OpenAIClient{config: config, provider: "openai"}

	if config.BaseURL == "" {
		c.client = openai.NewClient(apiKey)
		if c.config.Model == "" {
			c.config.Model = defaultOpenAIModel
		}
		return c, nil
	}

	if err := validateBaseURL(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if apiKey == "" {
		apiKey = placeholderAPIKey
	}
	sdkConfig := openai.DefaultConfig(apiKey)
	sdkConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if !hasAPIPath(sdkConfig.BaseURL) {
		sdkConfig.BaseURL += "/v1"
	}

	c.client = openai.NewClientWithConfig(sdkConfig)
	c.provider = "openai-compatible"
	if c.config.Model == "" {
		c.config.Model = defaultCompatibleModel
	}
	return c, nil
}

// Chat implements Client.
func (c *OpenAIClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(messages))
	if err != nil {
		return nil, providerError(c.provider, openAIStatus(err), 0, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w", c.provider, ErrEmptyResponse)
	}

	out := &types.Response{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Model:        resp.Model,
	}
	// compatible servers often omit usage
	if u := resp.Usage; u.TotalTokens > 0 {
		out.TokensUsed = &types.TokenUsage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

// Close is a no-op.
func (c *OpenAIClient) Close() error {
	return nil
}

func (c *OpenAIClient) request(messages []types.Message) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
		Stop:     c.config.Stop,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	if t := c.config.Temperature; t != nil {
		// omitempty drops an exact zero, which would leave the server default
		req.Temperature = max(*t, math.SmallestNonzeroFloat32)
	}
	if c.config.MaxTokens != nil {
		req.MaxTokens = *c.config.MaxTokens
	}
	if c.config.TopP != nil {
		req.TopP = *c.config.TopP
	}
	return req
}

// openAIStatus extracts the HTTP status from an SDK error, or 0.
func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func validateBaseURL(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL %q must start with http:// or https://", baseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL %q has no host", baseURL)
	}
	return nil
}

func hasAPIPath(baseURL string) bool {
	return strings.HasSuffix(baseURL, "/v1") || strings.HasSuffix(baseURL, "/api")
}
