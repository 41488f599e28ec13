// Package adapters provides LLM provider implementations.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/draftsmith/draftsmith/internal/llm"
	openai "github.com/sashabaranov/go-openai"
)

// modelCapabilities maps model names to their capabilities.
var modelCapabilities = map[string]llm.Capabilities{
	"gpt-4o": {
		SupportsStreaming: true,
		MaxContextTokens:  128000,
		MaxOutputTokens:   16384,
		TokenizerType:     "o200k_base",
	},
	"gpt-4o-mini": {
		SupportsStreaming: true,
		MaxContextTokens:  128000,
		MaxOutputTokens:   16384,
		TokenizerType:     "o200k_base",
	},
	"gpt-4-turbo": {
		SupportsStreaming: true,
		MaxContextTokens:  128000,
		MaxOutputTokens:   4096,
		TokenizerType:     "cl100k_base",
	},
	"gpt-4": {
		SupportsStreaming: true,
		MaxContextTokens:  8192,
		MaxOutputTokens:   4096,
		TokenizerType:     "cl100k_base",
	},
	"gpt-3.5-turbo": {
		SupportsStreaming: true,
		MaxContextTokens:  16385,
		MaxOutputTokens:   4096,
		TokenizerType:     "cl100k_base",
	},
	"o1": {
		SupportsStreaming: false,
		MaxContextTokens:  200000,
		MaxOutputTokens:   100000,
		TokenizerType:     "o200k_base",
	},
	"o1-mini": {
		SupportsStreaming: false,
		MaxContextTokens:  128000,
		MaxOutputTokens:   65536,
		TokenizerType:     "o200k_base",
	},
}

// defaultCapabilities is used for unknown models.
var defaultCapabilities = llm.Capabilities{
	SupportsStreaming: true,
	MaxContextTokens:  128000,
	MaxOutputTokens:   4096,
	TokenizerType:     "cl100k_base",
}

// OpenAIAdapter implements the Provider interface for OpenAI API.
type OpenAIAdapter struct {
	client *openai.Client
	model  string
	config OpenAIConfig
}

// OpenAIConfig holds configuration for the OpenAI adapter.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string

	// Model is the model to use for completions.
	Model string

	// BaseURL overrides the default API URL (for Azure or compatible APIs).
	BaseURL string

	// Timeout is the request timeout duration.
	Timeout time.Duration

	// MaxRetries is the number of retries for rate-limited requests.
	MaxRetries int

	// RetryDelay is the initial delay between retries.
	RetryDelay time.Duration
}

// OpenAIOption configures an OpenAIAdapter.
type OpenAIOption func(*OpenAIConfig)

// WithOpenAIBaseURL sets a custom base URL.
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIConfig) {
		c.BaseURL = baseURL
	}
}

// WithOpenAITimeout sets the request timeout.
func WithOpenAITimeout(timeout time.Duration) OpenAIOption {
	return func(c *OpenAIConfig) {
		c.Timeout = timeout
	}
}

// WithOpenAIRetry sets retry configuration.
func WithOpenAIRetry(maxRetries int, retryDelay time.Duration) OpenAIOption {
	return func(c *OpenAIConfig) {
		c.MaxRetries = maxRetries
		c.RetryDelay = retryDelay
	}
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(apiKey, model string, opts ...OpenAIOption) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", llm.ErrInvalidAPIKey)
	}

	if model == "" {
		model = "gpt-4o"
	}

	config := OpenAIConfig{
		APIKey:     apiKey,
		Model:      model,
		Timeout:    120 * time.Second,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(&config)
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		config: config,
	}, nil
}

// Chat sends a chat completion request and returns the complete response.
func (a *OpenAIAdapter) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	openAIReq := a.buildRequest(req)

	var lastErr error
	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.config.RetryDelay * time.Duration(attempt)):
			}
		}

		resp, err := a.client.CreateChatCompletion(ctx, openAIReq)
		if err != nil {
			lastErr = a.handleError(err)
			if !a.isRetryable(lastErr) {
				return nil, lastErr
			}
			continue
		}

		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("%w: no choices in response", llm.ErrAPIError)
		}

		return a.buildResponse(resp), nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Stream sends a chat completion request and streams the response.
func (a *OpenAIAdapter) Stream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if !a.Capabilities().SupportsStreaming {
		return nil, llm.ErrStreamingNotSupported
	}

	openAIReq := a.buildRequest(req)
	openAIReq.Stream = true

	stream, err := a.client.CreateChatCompletionStream(ctx, openAIReq)
	if err != nil {
		return nil, a.handleError(err)
	}

	chunks := make(chan llm.StreamChunk, 100)
	go a.processStream(ctx, stream, chunks)
	return chunks, nil
}

// processStream reads from the OpenAI stream and sends chunks to the channel.
func (a *OpenAIAdapter) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- llm.StreamChunk) {
	defer close(chunks)
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			chunks <- llm.StreamChunk{Error: ctx.Err(), Done: true}
			return
		default:
		}

		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			chunks <- llm.StreamChunk{Done: true}
			return
		}
		if err != nil {
			chunks <- llm.StreamChunk{Error: a.handleError(err), Done: true}
			return
		}

		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		chunk := llm.StreamChunk{
			Delta:        choice.Delta.Content,
			FinishReason: string(choice.FinishReason),
			Done:         choice.FinishReason != "",
		}

		// Usage arrives on the final chunk when requested.
		if resp.Usage != nil {
			chunk.Usage = &llm.TokenUsage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
		}

		chunks <- chunk
	}
}

// Capabilities returns the provider's capabilities.
func (a *OpenAIAdapter) Capabilities() llm.Capabilities {
	caps, ok := modelCapabilities[a.model]
	if !ok {
		caps = defaultCapabilities
	}
	caps.Models = availableOpenAIModels()
	return caps
}

// Close releases resources held by the adapter.
func (a *OpenAIAdapter) Close() error {
	// No persistent resources to clean up
	return nil
}

// buildRequest converts our ChatRequest to the OpenAI format.
func (a *OpenAIAdapter) buildRequest(req llm.ChatRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	openAIReq := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: messages,
		Stop:     req.Stop,
	}

	if req.MaxTokens > 0 {
		openAIReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		openAIReq.Temperature = float32(req.Temperature)
	}

	return openAIReq
}

// buildResponse converts OpenAI response to our ChatResponse.
func (a *OpenAIAdapter) buildResponse(resp openai.ChatCompletionResponse) *llm.ChatResponse {
	choice := resp.Choices[0]

	return &llm.ChatResponse{
		Message: llm.ChatMessage{
			Role:    choice.Message.Role,
			Content: choice.Message.Content,
		},
		Usage: llm.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
	}
}

// handleError converts OpenAI errors to our error types.
func (a *OpenAIAdapter) handleError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("request canceled: %w", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401:
			return fmt.Errorf("%w: %s", llm.ErrInvalidAPIKey, apiErr.Message)
		case 404:
			return fmt.Errorf("%w: %s", llm.ErrModelNotFound, apiErr.Message)
		case 429:
			return fmt.Errorf("%w: %s", llm.ErrRateLimited, apiErr.Message)
		case 400:
			if apiErr.Code == "context_length_exceeded" {
				return fmt.Errorf("%w: %s", llm.ErrContextTooLong, apiErr.Message)
			}
			return fmt.Errorf("%w: %s", llm.ErrAPIError, apiErr.Message)
		case 500, 502, 503, 504:
			return fmt.Errorf("%w: server error - %s", llm.ErrAPIError, apiErr.Message)
		default:
			return fmt.Errorf("%w: HTTP %d - %s", llm.ErrAPIError, apiErr.HTTPStatusCode, apiErr.Message)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: %s", llm.ErrAPIError, reqErr.Error())
	}

	return fmt.Errorf("%w: %s", llm.ErrAPIError, err.Error())
}

// isRetryable returns true if the error is retryable.
func (a *OpenAIAdapter) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, llm.ErrRateLimited) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}

	return false
}

// availableOpenAIModels returns the list of supported OpenAI models.
func availableOpenAIModels() []string {
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
		"gpt-4",
		"gpt-3.5-turbo",
		"o1",
		"o1-mini",
	}
}

// Verify OpenAIAdapter implements Provider interface.
var _ llm.Provider = (*OpenAIAdapter)(nil)
