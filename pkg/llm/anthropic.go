package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

const (
	anthropicEndpoint         = "https://api.anthropic.com"
	anthropicDefaultMaxTokens = 1024
)

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client           *anthropic.Client
	model            string
	defaultMaxTokens int
	timeout          time.Duration
	logger           *zap.Logger
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
// cfg.Endpoint is not used.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	return &AnthropicClient{
		client:           anthropic.NewClient(cfg.APIKey),
		model:            cfg.Model,
		defaultMaxTokens: maxTokens,
		timeout:          cfg.Timeout,
		logger:           logger.Named("llm"),
	}, nil
}

// GenerateResponse sends one user message with an optional system prompt.
func (c *AnthropicClient) GenerateResponse(
	ctx context.Context,
	prompt string,
	systemMessage string,
	temperature float64,
	maxTokens int,
) (*GenerateResponseResult, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	if maxTokens <= 0 {
		maxTokens = c.defaultMaxTokens
	}
	temp := float32(temperature)

	c.logger.Debug("LLM request",
		zap.String("provider", "anthropic"),
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", temperature))

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      systemMessage,
		MaxTokens:   maxTokens,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		llmErr := ClassifyError(err)
		llmErr.Model = c.model
		llmErr.Endpoint = anthropicEndpoint
		return nil, llmErr
	}

	var text strings.Builder
	for _, part := range resp.Content {
		if part.Type == "text" && part.Text != nil {
			text.WriteString(*part.Text)
		}
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.InputTokens),
		zap.Int("completion_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerateResponseResult{
		Content:          text.String(),
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

// CreateEmbedding is not offered by the Anthropic API.
func (c *AnthropicClient) CreateEmbedding(ctx context.Context, input string, model string) ([]float32, error) {
	return nil, ErrEmbeddingsUnsupported
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

// GetEndpoint returns the API base URL.
func (c *AnthropicClient) GetEndpoint() string {
	return anthropicEndpoint
}
