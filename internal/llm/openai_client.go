// ABOUTME: OpenAI-compatible chat completion client used for answers and relevance scoring
// ABOUTME: Applies a per-call timeout and an optional request rate limit; never retries
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/harper/forum-rag/internal/core"
	"github.com/harper/forum-rag/internal/models"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4"
	// DefaultTimeout bounds a single completion call
	DefaultTimeout = 30 * time.Second
)

// Verify interface compliance
var _ core.Completer = (*OpenAIClient)(nil)

// ErrEmptyCompletion is returned when the service answers with no choices
var ErrEmptyCompletion = errors.New("no completion choices returned")

// ClientConfig holds configuration for the completion client
type ClientConfig struct {
	APIKey    string
	ChatModel string
	BaseURL   string
	Timeout   time.Duration
	// RequestsPerSecond paces calls; 0 disables pacing
	RequestsPerSecond float64
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:    apiKey,
		ChatModel: DefaultChatModel,
		Timeout:   DefaultTimeout,
	}
}

// OpenAIClient wraps the OpenAI chat completion API
type OpenAIClient struct {
	client    *openai.Client
	chatModel string
	timeout   time.Duration
	limiter   *rate.Limiter
}

// NewOpenAIClient creates a new completion client with the given API key using default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new completion client with custom configuration
func NewOpenAIClientWithConfig(config *ClientConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", models.ErrConfig)
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	chatModel := config.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &OpenAIClient{
		client:    openai.NewClientWithConfig(clientConfig),
		chatModel: chatModel,
		timeout:   timeout,
	}
	if config.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return c, nil
}

// Model returns the chat model name
func (c *OpenAIClient) Model() string {
	return c.chatModel
}

// Complete sends one system+user exchange and returns the first choice's text
func (c *OpenAIClient) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: wireTemperature(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// wireTemperature keeps an explicit 0 on the wire; the request field is
// omitempty, so a literal 0 would fall back to the service default of 1.
func wireTemperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
