package metrics

import (
	"github.com/pkoukk/tiktoken-go"
)

// Counter wraps a tiktoken encoder for token counting operations.
type Counter struct {
	encoder  *tiktoken.Tiktoken
	encoding string
}

// Default encoding for fallback.
const defaultEncoding = "cl100k_base"

// Message overhead constants for chat message token counting, based on
// OpenAI's chat format overhead.
const (
	messageOverhead = 4
	replyPriming    = 2
)

// NewCounter creates a new token counter with the specified encoding.
// Falls back to cl100k_base if the specified encoding is not found.
func NewCounter(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}

	encoder, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		encoder, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return nil, err
		}
		encoding = defaultEncoding
	}

	return &Counter{
		encoder:  encoder,
		encoding: encoding,
	}, nil
}

// Encoding returns the current encoding name.
func (c *Counter) Encoding() string {
	return c.encoding
}

// Count returns the number of tokens in the given text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	tokens := c.encoder.Encode(text, nil, nil)
	return len(tokens)
}

// CountMessage counts the tokens of a single chat message including the
// per-message formatting overhead and reply priming.
func (c *Counter) CountMessage(role, content string) int {
	return messageOverhead + c.Count(role) + c.Count(content) + replyPriming
}

// Truncate truncates the given text to fit within the specified token limit.
// If fromEnd is true, the end of the text is kept; otherwise the beginning.
func (c *Counter) Truncate(text string, maxTokens int, fromEnd bool) string {
	if maxTokens <= 0 {
		return ""
	}

	tokens := c.encoder.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}

	if fromEnd {
		return c.encoder.Decode(tokens[len(tokens)-maxTokens:])
	}
	return c.encoder.Decode(tokens[:maxTokens])
}
