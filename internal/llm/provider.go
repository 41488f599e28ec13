// Package llm provides abstractions for interacting with Large Language Models.
package llm

import (
	"context"
	"errors"
)

// Common errors returned by LLM providers.
var (
	// ErrContextTooLong is returned when the input exceeds the model's context window.
	ErrContextTooLong = errors.New("context length exceeds model maximum")

	// ErrRateLimited is returned when the API rate limit has been exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrAPIError is returned when the API returns an unexpected error.
	ErrAPIError = errors.New("API error")

	// ErrInvalidAPIKey is returned when the API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("invalid or missing API key")

	// ErrModelNotFound is returned when the requested model is not available.
	ErrModelNotFound = errors.New("model not found")

	// ErrStreamingNotSupported is returned when streaming is requested but not supported.
	ErrStreamingNotSupported = errors.New("streaming not supported by this provider")
)

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// FinishReason constants for response completion reasons.
const (
	FinishReasonStop   = "stop"
	FinishReasonLength = "length"
	FinishReasonError  = "error"
)

// Provider defines the interface for LLM providers.
// Implementations should be safe for concurrent use.
type Provider interface {
	// Chat sends a chat request and returns the complete response.
	// Returns ErrContextTooLong if the request exceeds context limits.
	// Returns ErrRateLimited if rate limits are exceeded.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Stream sends a chat request and returns a channel of streaming chunks.
	// The channel is closed when the response is complete or an error occurs.
	// Check StreamChunk.Error for any errors during streaming.
	// Returns ErrStreamingNotSupported if the provider doesn't support streaming.
	Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)

	// Capabilities returns the capabilities of this provider.
	Capabilities() Capabilities

	// Close releases any resources held by the provider.
	Close() error
}

// ChatRequest represents a request to the chat API.
type ChatRequest struct {
	// Messages is the conversation history to send.
	Messages []ChatMessage

	// MaxTokens is the maximum number of tokens to generate.
	// If 0, the provider's default is used.
	MaxTokens int

	// Temperature controls randomness in the response (0.0-2.0).
	// Lower values produce more deterministic output.
	Temperature float64

	// Stop sequences that will stop generation.
	Stop []string
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role indicates the message author: system, user, or assistant.
	Role string

	// Content is the text content of the message.
	Content string
}

// ChatResponse represents the complete response from a chat request.
type ChatResponse struct {
	// Message is the assistant's response message.
	Message ChatMessage

	// Usage contains token usage statistics.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	// Values: "stop", "length", "error".
	FinishReason string

	// Model is the actual model used (may differ from requested if aliased).
	Model string
}

// StreamChunk represents a single chunk in a streaming response.
type StreamChunk struct {
	// Delta is the incremental text content.
	Delta string

	// Done indicates this is the final chunk.
	Done bool

	// FinishReason is set on the final chunk to indicate why generation stopped.
	FinishReason string

	// Usage is optionally included in the final chunk.
	Usage *TokenUsage

	// Error contains any error that occurred during streaming.
	Error error
}

// TokenUsage contains token usage statistics for a request.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens in the completion.
	CompletionTokens int

	// TotalTokens is the total number of tokens used.
	TotalTokens int
}

// Capabilities describes what a provider supports.
type Capabilities struct {
	// SupportsStreaming indicates if the provider supports streaming responses.
	SupportsStreaming bool

	// MaxContextTokens is the maximum context window size.
	MaxContextTokens int

	// MaxOutputTokens is the maximum number of tokens the model can generate.
	MaxOutputTokens int

	// TokenizerType identifies the tokenizer to use for token counting.
	// Values: "cl100k_base" (GPT-4), "o200k_base" (GPT-4o), "gemini", etc.
	TokenizerType string

	// Models lists the available model names.
	Models []string
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// IsComplete returns true if this chunk indicates the stream is complete.
func (c StreamChunk) IsComplete() bool {
	return c.Done || c.Error != nil
}
