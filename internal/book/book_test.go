package book

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftsmith/draftsmith/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	return m
}

func testConfig(title string) *types.BookConfig {
	return types.DefaultBookConfig(title, "A field guide to production systems.")
}

func TestManagerCreate(t *testing.T) {
	m := newTestManager(t)

	b, err := m.Create("systems-guide", testConfig("Systems Field Guide"))
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, "Systems Field Guide", b.Info.Title)

	for _, dir := range []string{".draftsmith", "chapters"} {
		info, err := os.Stat(filepath.Join(b.Path(), dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
	_, err = os.Stat(filepath.Join(b.Path(), "README.md"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(b.Path(), ".draftsmith", "book.yaml"))
	assert.NoError(t, err)
}

func TestManagerCreateInvalidName(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		name     string
		bookName string
	}{
		{name: "empty", bookName: ""},
		{name: "slash", bookName: "a/b"},
		{name: "spaces", bookName: "my book"},
		{name: "dotdot", bookName: ".."},
		{name: "reserved", bookName: "CON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Create(tt.bookName, testConfig("Bad"))
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}
}

func TestManagerCreateDuplicate(t *testing.T) {
	m := newTestManager(t)

	b, err := m.Create("guide", testConfig("Guide"))
	require.NoError(t, err)
	b.Close()

	_, err = m.Create("guide", testConfig("Guide"))
	assert.ErrorIs(t, err, ErrBookExists)
}

func TestManagerOpenNotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Open("missing")

	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestManagerOpenRoundTrip(t *testing.T) {
	m := newTestManager(t)

	created, err := m.Create("guide", testConfig("Guide"))
	require.NoError(t, err)
	created.Close()

	opened, err := m.Open("guide")
	require.NoError(t, err)
	defer opened.Close()

	assert.Equal(t, "Guide", opened.Config.Title)
	assert.Equal(t, "openai", opened.Config.LLM.Provider)
}

func TestManagerList(t *testing.T) {
	m := newTestManager(t)

	for _, name := range []string{"alpha", "beta"} {
		b, err := m.Create(name, testConfig(name))
		require.NoError(t, err)
		b.Close()
	}

	books, err := m.List()
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "alpha", books[0].ID)
	assert.Equal(t, "beta", books[1].ID)
}

func TestManagerListSkipsNonBooks(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "random-dir"), 0755))

	books, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestManagerDelete(t *testing.T) {
	m := newTestManager(t)

	b, err := m.Create("guide", testConfig("Guide"))
	require.NoError(t, err)
	path := b.Path()
	b.Close()

	require.NoError(t, m.Delete("guide"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, m.Delete("guide"), ErrBookNotFound)
}

func TestBookOutlineRoundTrip(t *testing.T) {
	m := newTestManager(t)

	b, err := m.Create("guide", testConfig("Guide"))
	require.NoError(t, err)
	defer b.Close()

	now := time.Now()
	outline := []*types.Chapter{
		{ID: "ch-1", Title: "Intro", Content: "Hello world", WordCount: 2,
			Status: types.StatusDraft, Expanded: true, CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, b.SaveOutline(outline))

	loaded, err := b.LoadOutline()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Intro", loaded[0].Title)

	// SaveOutline also exports markdown
	_, err = os.Stat(filepath.Join(b.Path(), "chapters", "01-ch-1.md"))
	assert.NoError(t, err)
}

func TestBookConversationRoundTrip(t *testing.T) {
	m := newTestManager(t)

	b, err := m.Create("guide", testConfig("Guide"))
	require.NoError(t, err)
	defer b.Close()

	msgs := []types.AIMessage{
		{Role: types.RoleUser, Content: "draft an outline", ChapterID: "ch-1"},
		{Role: types.RoleAssistant, Content: "1. Intro", ChapterID: "ch-1"},
	}
	require.NoError(t, b.AppendConversation(msgs))

	loaded, err := b.LoadConversation(50)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, types.RoleUser, loaded[0].Role)
}

func TestLoadBookConfigNotFound(t *testing.T) {
	_, err := LoadBookConfig(t.TempDir())

	assert.ErrorIs(t, err, ErrConfigNotFound)
}
