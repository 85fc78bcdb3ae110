// ABOUTME: OpenAI client for chunk embeddings and risk reasoning completions
// ABOUTME: Calls are rate limited and retried with backoff; bad requests are not retried
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/riskmem/internal/util"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// DefaultChatModel is the default model for reasoning completions
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default model for embeddings
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
)

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey            string
	BaseURL           string
	ChatModel         string
	EmbeddingModel    string
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64
	Temperature       float32
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:            apiKey,
		ChatModel:         DefaultChatModel,
		EmbeddingModel:    DefaultEmbeddingModel,
		MaxRetries:        3,
		RetryDelay:        2 * time.Second,
		RequestsPerSecond: 5,
		Temperature:       0.2,
	}
}

// OpenAIClient wraps the OpenAI API client with rate limiting and retry logic
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	maxRetries     int
	retryDelay     time.Duration
	temperature    float32
	limiter        *rate.Limiter
	logger         *log.Logger
}

// NewOpenAIClient creates a new OpenAI client with the given API key using default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration
func NewOpenAIClientWithConfig(config *ClientConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	oaCfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		oaCfg.BaseURL = config.BaseURL
	}

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(oaCfg),
		chatModel:      config.ChatModel,
		embeddingModel: config.EmbeddingModel,
		maxRetries:     config.MaxRetries,
		retryDelay:     config.RetryDelay,
		temperature:    config.Temperature,
		limiter:        rate.NewLimiter(rate.Limit(rps), burst),
		logger:         log.WithPrefix("openai"),
	}, nil
}

// Model returns the embedding model name vectors are stored under
func (c *OpenAIClient) Model() string {
	return c.embeddingModel
}

// Embed returns the embedding of text
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	var embedding []float64

	err := util.Retry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}

		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: openai.EmbeddingModel(c.embeddingModel),
		})
		if err != nil {
			return classify(err)
		}
		if len(resp.Data) == 0 {
			return errors.New("no embeddings returned")
		}

		embedding32 := resp.Data[0].Embedding
		embedding = make([]float64, len(embedding32))
		for i, v := range embedding32 {
			embedding[i] = float64(v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	return embedding, nil
}

const reasoningSystemPrompt = `You are a security analyst reviewing software requirements and user stories.
Identify the single most important security risk the analyst's question points at, grounded in the supplied context.
Respond with ONLY a JSON object with these fields:
- description: one or two sentences naming the risk and the affected requirement
- severity: one of low, medium, high, critical
- confidence: a number from 0.0 to 1.0`

// Generate sends the prompt to the chat model and returns the text of the first choice
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return c.complete(ctx, reasoningSystemPrompt, prompt, maxTokens)
}

// GenerateWithSystem is Generate with a caller-supplied system prompt
func (c *OpenAIClient) GenerateWithSystem(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	return c.complete(ctx, system, prompt, maxTokens)
}

func (c *OpenAIClient) complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	var content string

	err := util.Retry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			MaxTokens:   maxTokens,
			Temperature: c.temperature,
		})
		if err != nil {
			c.logger.Debug("completion attempt failed", "err", err)
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("no completion choices returned")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	return content, nil
}

// classify marks client errors that retrying cannot fix
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return util.Permanent(err)
		}
	}
	return err
}
