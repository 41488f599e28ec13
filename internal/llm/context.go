// Package llm provides LLM client implementations.
package llm

import (
	"fmt"
	"strings"

	"github.com/draftsmith/draftsmith/pkg/types"
)

// TokenCounter interface for counting tokens.
type TokenCounter interface {
	Count(text string) int
	CountMessage(role, content string) int
	Truncate(text string, maxTokens int, fromEnd bool) string
}

// PromptAssembler builds chat requests from the book configuration, the
// active chapter's content, and the conversation history, keeping the
// whole prompt inside the provider's context window.
type PromptAssembler struct {
	writing   types.WritingConfig
	bookTitle string
	maxTokens int
	tokenizer TokenCounter
}

// Fractions of the context window reserved for each prompt section.
const (
	chapterShare  = 0.50
	historyShare  = 0.30
	responseShare = 0.15
)

// NewPromptAssembler creates an assembler for a book.
func NewPromptAssembler(bookTitle string, writing types.WritingConfig, maxTokens int, tokenizer TokenCounter) *PromptAssembler {
	return &PromptAssembler{
		writing:   writing,
		bookTitle: bookTitle,
		maxTokens: maxTokens,
		tokenizer: tokenizer,
	}
}

// Assemble builds the chat request for a prompt against the given chapter
// content. The chapter content is truncated from the front if it exceeds
// its share of the window, keeping the most recent text.
func (p *PromptAssembler) Assemble(prompt, chapterTitle, chapterContent string, history []ChatMessage) ChatRequest {
	system := p.systemPrompt(chapterTitle, chapterContent)

	budget := int(float64(p.maxTokens) * historyShare)
	messages := []ChatMessage{NewSystemMessage(system)}
	messages = append(messages, p.truncateHistory(history, budget)...)
	messages = append(messages, NewUserMessage(prompt))

	return ChatRequest{
		Messages:    messages,
		MaxTokens:   int(float64(p.maxTokens) * responseShare),
		Temperature: 0.7,
	}
}

// systemPrompt renders the system message including the chapter context.
func (p *PromptAssembler) systemPrompt(chapterTitle, chapterContent string) string {
	var sb strings.Builder

	sb.WriteString(DefaultDraftingPrompt())
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("You are helping write a technical book titled %q.", p.bookTitle))
	sb.WriteString(fmt.Sprintf("\n\nWriting Guidelines:\n- Style: %s\n- Audience: %s\n- Language: %s\n- Output format: Markdown",
		p.writing.Style, p.writing.Audience, p.writing.Language))

	content := strings.TrimSpace(chapterContent)
	if content != "" {
		budget := int(float64(p.maxTokens) * chapterShare)
		content = p.tokenizer.Truncate(content, budget, true)
		sb.WriteString(fmt.Sprintf("\n\n## Current Chapter: %s\n\n%s", chapterTitle, content))
	} else if chapterTitle != "" {
		sb.WriteString(fmt.Sprintf("\n\n## Current Chapter: %s\n\n(The chapter is still empty.)", chapterTitle))
	}

	return sb.String()
}

// truncateHistory keeps the most recent messages that fit within budget.
func (p *PromptAssembler) truncateHistory(history []ChatMessage, budget int) []ChatMessage {
	if len(history) == 0 {
		return nil
	}

	usedTokens := 0
	var kept []ChatMessage
	for i := len(history) - 1; i >= 0; i-- {
		msgTokens := p.tokenizer.CountMessage(history[i].Role, history[i].Content)
		if usedTokens+msgTokens > budget {
			break
		}
		kept = append([]ChatMessage{history[i]}, kept...)
		usedTokens += msgTokens
	}

	return kept
}

// DefaultDraftingPrompt returns the default system prompt for technical
// book drafting.
func DefaultDraftingPrompt() string {
	return `You are an AI assistant specialized in drafting technical books. Your role is to:

1. Help structure chapters and sections into a coherent outline
2. Write clear, accurate technical prose in Markdown
3. Expand rough notes into complete explanations with examples
4. Polish existing text for clarity and consistency
5. Keep terminology consistent across chapters

When writing prose:
- Prefer concrete examples over abstract description
- Use code blocks, lists, and tables where they aid understanding
- Keep the established tone and depth of the surrounding text

Always remember:
- The user is the author; you are a collaborative assistant
- Respect the author's structure and naming choices
- Ask for clarification when the request is ambiguous`
}
