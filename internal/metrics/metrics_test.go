package metrics

import (
	"testing"

	"github.com/draftsmith/draftsmith/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordCount(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{name: "empty string yields zero", content: "", want: 0},
		{name: "whitespace only yields zero", content: "   \n\t  ", want: 0},
		{name: "single word", content: "hello", want: 1},
		{name: "two words", content: "Hello world", want: 2},
		{name: "three words with extra spacing", content: "Hello   world  foo", want: 3},
		{name: "newlines and tabs delimit", content: "one\ntwo\tthree\nfour", want: 4},
		{name: "leading and trailing whitespace ignored", content: "  alpha beta  ", want: 2},
		{name: "markdown counts like prose", content: "## Heading with *emphasis*", want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WordCount(tt.content))
		})
	}
}

func TestWordCountDeterministic(t *testing.T) {
	const content = "The same content always yields the same count."
	first := WordCount(content)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, WordCount(content))
	}
}

func TestRecompute(t *testing.T) {
	ch := &types.Chapter{ID: "1", Title: "Intro", Content: "Hello world foo"}
	Recompute(ch)
	assert.Equal(t, 3, ch.WordCount)

	ch.Content = ""
	Recompute(ch)
	assert.Equal(t, 0, ch.WordCount)
}

func TestTotalWords(t *testing.T) {
	chapters := []*types.Chapter{
		{
			ID: "1", WordCount: 10,
			Children: []*types.Chapter{
				{ID: "1.1", WordCount: 5},
				{ID: "1.2", WordCount: 7, Children: []*types.Chapter{
					{ID: "1.2.1", WordCount: 2},
				}},
			},
		},
		{ID: "2", WordCount: 1},
	}

	// Per-node counts: a parent's count does not include its children,
	// so the book total is a plain sum.
	assert.Equal(t, 25, TotalWords(chapters))
	assert.Equal(t, 0, TotalWords(nil))
}

func TestNewCounter(t *testing.T) {
	tests := []struct {
		name         string
		encoding     string
		wantEncoding string
	}{
		{name: "default encoding", encoding: "", wantEncoding: "cl100k_base"},
		{name: "explicit cl100k_base", encoding: "cl100k_base", wantEncoding: "cl100k_base"},
		{name: "o200k_base", encoding: "o200k_base", wantEncoding: "o200k_base"},
		{name: "falls back for unknown encoding", encoding: "bogus", wantEncoding: "cl100k_base"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter, err := NewCounter(tt.encoding)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEncoding, counter.Encoding())
		})
	}
}

func TestCounterCount(t *testing.T) {
	counter, err := NewCounter("cl100k_base")
	require.NoError(t, err)

	assert.Equal(t, 0, counter.Count(""))
	assert.Equal(t, 1, counter.Count("hello"))
	assert.Greater(t, counter.Count("The quick brown fox jumps over the lazy dog."), 5)
}

func TestCounterCountMessage(t *testing.T) {
	counter, err := NewCounter("cl100k_base")
	require.NoError(t, err)

	content := "hello world"
	want := messageOverhead + counter.Count("user") + counter.Count(content) + replyPriming
	assert.Equal(t, want, counter.CountMessage("user", content))
}

func TestCounterTruncate(t *testing.T) {
	counter, err := NewCounter("cl100k_base")
	require.NoError(t, err)

	text := "one two three four five six seven eight nine ten"

	t.Run("within limit returns unchanged", func(t *testing.T) {
		assert.Equal(t, text, counter.Truncate(text, 1000, false))
	})

	t.Run("zero limit returns empty", func(t *testing.T) {
		assert.Equal(t, "", counter.Truncate(text, 0, false))
	})

	t.Run("keeps beginning", func(t *testing.T) {
		got := counter.Truncate(text, 3, false)
		assert.True(t, len(got) < len(text))
		assert.Contains(t, text, got)
	})

	t.Run("keeps end", func(t *testing.T) {
		got := counter.Truncate(text, 3, true)
		assert.True(t, len(got) < len(text))
		assert.Contains(t, text, got)
	})
}
