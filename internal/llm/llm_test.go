package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/draftsmith/draftsmith/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokenizer counts whitespace-delimited words as tokens, which keeps
// budget math easy to reason about in tests.
type fakeTokenizer struct{}

func (fakeTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

func (f fakeTokenizer) CountMessage(role, content string) int {
	return f.Count(content)
}

func (fakeTokenizer) Truncate(text string, maxTokens int, fromEnd bool) string {
	words := strings.Fields(text)
	if maxTokens <= 0 {
		return ""
	}
	if len(words) <= maxTokens {
		return text
	}
	if fromEnd {
		return strings.Join(words[len(words)-maxTokens:], " ")
	}
	return strings.Join(words[:maxTokens], " ")
}

func TestMessageHelpers(t *testing.T) {
	tests := []struct {
		name     string
		make     func(string) ChatMessage
		wantRole string
	}{
		{name: "system message", make: NewSystemMessage, wantRole: RoleSystem},
		{name: "user message", make: NewUserMessage, wantRole: RoleUser},
		{name: "assistant message", make: NewAssistantMessage, wantRole: RoleAssistant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.make("some content")
			assert.Equal(t, tt.wantRole, msg.Role)
			assert.Equal(t, "some content", msg.Content)
		})
	}
}

func TestStreamChunkIsComplete(t *testing.T) {
	tests := []struct {
		name  string
		chunk StreamChunk
		want  bool
	}{
		{name: "incomplete chunk", chunk: StreamChunk{Delta: "text"}, want: false},
		{name: "done chunk", chunk: StreamChunk{Done: true}, want: true},
		{name: "error chunk", chunk: StreamChunk{Error: errors.New("boom")}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.chunk.IsComplete())
		})
	}
}

func TestPromptAssemblerAssemble(t *testing.T) {
	writing := types.WritingConfig{Style: "technical", Audience: "practitioners", Language: "en"}
	assembler := NewPromptAssembler("Designing Data Pipelines", writing, 1000, fakeTokenizer{})

	req := assembler.Assemble(
		"Expand this section",
		"Getting Started",
		"Streams are sequences of events.",
		[]ChatMessage{
			NewUserMessage("earlier question"),
			NewAssistantMessage("earlier answer"),
		},
	)

	require.GreaterOrEqual(t, len(req.Messages), 4)

	system := req.Messages[0]
	assert.Equal(t, RoleSystem, system.Role)
	assert.Contains(t, system.Content, "Designing Data Pipelines")
	assert.Contains(t, system.Content, "Getting Started")
	assert.Contains(t, system.Content, "Streams are sequences of events.")
	assert.Contains(t, system.Content, "technical")

	last := req.Messages[len(req.Messages)-1]
	assert.Equal(t, RoleUser, last.Role)
	assert.Equal(t, "Expand this section", last.Content)

	assert.Equal(t, 150, req.MaxTokens)
}

func TestPromptAssemblerEmptyChapter(t *testing.T) {
	assembler := NewPromptAssembler("Book", types.WritingConfig{}, 1000, fakeTokenizer{})

	req := assembler.Assemble("Draft an outline", "Introduction", "   ", nil)

	system := req.Messages[0]
	assert.Contains(t, system.Content, "still empty")
	assert.Len(t, req.Messages, 2)
}

func TestPromptAssemblerTruncatesChapter(t *testing.T) {
	// 2000 words of chapter content against a 1000-token window: only
	// half the window is available for the chapter, and the kept half
	// must be the end of the text.
	words := make([]string, 2000)
	for i := range words {
		words[i] = "w"
	}
	words[len(words)-1] = "LAST"
	content := strings.Join(words, " ")

	assembler := NewPromptAssembler("Book", types.WritingConfig{}, 1000, fakeTokenizer{})
	req := assembler.Assemble("polish", "Chapter", content, nil)

	system := req.Messages[0].Content
	assert.Contains(t, system, "LAST")
	assert.Less(t, len(system), len(content))
}

func TestPromptAssemblerHistoryBudget(t *testing.T) {
	assembler := NewPromptAssembler("Book", types.WritingConfig{}, 10, fakeTokenizer{})

	// History budget is 3 tokens; only the most recent message fits.
	history := []ChatMessage{
		NewUserMessage("one two three four"),
		NewAssistantMessage("five six"),
	}
	req := assembler.Assemble("go", "Ch", "", history)

	// system + kept history + prompt
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "five six", req.Messages[1].Content)
}

// fakeProvider serves a canned response and, when enabled, a canned
// chunk stream.
type fakeProvider struct {
	streaming bool
	text      string
	chunks    []StreamChunk
}

func (p *fakeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{Message: NewAssistantMessage(p.text), FinishReason: FinishReasonStop}, nil
}

func (p *fakeProvider) Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	if !p.streaming {
		return nil, ErrStreamingNotSupported
	}
	out := make(chan StreamChunk, len(p.chunks))
	for _, c := range p.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

func (p *fakeProvider) Capabilities() Capabilities {
	return Capabilities{SupportsStreaming: p.streaming, MaxContextTokens: 1000}
}

func (p *fakeProvider) Close() error { return nil }

func TestGeneratorGenerate(t *testing.T) {
	assembler := NewPromptAssembler("Book", types.WritingConfig{}, 1000, fakeTokenizer{})
	gen := NewGenerator(&fakeProvider{text: "Here you go."}, assembler)

	text, err := gen.Generate(context.Background(), "draft", "existing content")
	require.NoError(t, err)
	assert.Equal(t, "Here you go.", text)
}

func TestGeneratorGenerateStream(t *testing.T) {
	assembler := NewPromptAssembler("Book", types.WritingConfig{}, 1000, fakeTokenizer{})

	t.Run("streams deltas in order", func(t *testing.T) {
		provider := &fakeProvider{
			streaming: true,
			chunks: []StreamChunk{
				{Delta: "Hello "},
				{Delta: "world."},
				{Done: true, FinishReason: FinishReasonStop},
			},
		}
		gen := NewGenerator(provider, assembler)

		var deltas []string
		text, err := gen.GenerateStream(context.Background(), "greet", "", func(d string) {
			deltas = append(deltas, d)
		})
		require.NoError(t, err)
		assert.Equal(t, "Hello world.", text)
		assert.Equal(t, []string{"Hello ", "world."}, deltas)
	})

	t.Run("falls back to chat without streaming support", func(t *testing.T) {
		gen := NewGenerator(&fakeProvider{text: "Hello world."}, assembler)

		var deltas []string
		text, err := gen.GenerateStream(context.Background(), "greet", "", func(d string) {
			deltas = append(deltas, d)
		})
		require.NoError(t, err)
		assert.Equal(t, "Hello world.", text)
		assert.Equal(t, []string{"Hello world."}, deltas)
	})

	t.Run("chunk error aborts the stream", func(t *testing.T) {
		provider := &fakeProvider{
			streaming: true,
			chunks:    []StreamChunk{{Delta: "partial "}, {Error: ErrAPIError, Done: true}},
		}
		gen := NewGenerator(provider, assembler)

		_, err := gen.GenerateStream(context.Background(), "greet", "", func(string) {})
		assert.ErrorIs(t, err, ErrAPIError)
	})
}

func TestDefaultDraftingPrompt(t *testing.T) {
	prompt := DefaultDraftingPrompt()
	assert.Contains(t, prompt, "technical books")
	assert.Contains(t, prompt, "Markdown")
}
