package tui

import (
	"context"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftsmith/draftsmith/internal/conversation"
	"github.com/draftsmith/draftsmith/internal/outline"
	"github.com/draftsmith/draftsmith/internal/session"
	"github.com/draftsmith/draftsmith/pkg/types"
)

func newTestModel(t *testing.T, titles ...string) *Model {
	t.Helper()
	tree := outline.New()
	for _, title := range titles {
		_, err := tree.Add("", "ch-"+title, title)
		require.NoError(t, err)
	}
	gen := conversation.GeneratorFunc(func(ctx context.Context, prompt, contextContent string) (string, error) {
		return "generated reply", nil
	})
	sess := session.New(&types.Book{Title: "Guide"}, tree, conversation.New(gen))
	m := New(sess, nil)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestNewModelInitialState(t *testing.T) {
	m := newTestModel(t, "intro", "setup")

	assert.Equal(t, PaneEditor, m.Pane())
	assert.Len(t, m.rows, 2)
	require.NotNil(t, m.sess.ActiveChapter())
	assert.Equal(t, "ch-intro", m.sess.ActiveChapter().ID)
}

func TestCyclePane(t *testing.T) {
	m := newTestModel(t, "intro")

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, PaneAssistant, m.Pane())
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, PaneOutline, m.Pane())
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, PaneEditor, m.Pane())
}

func TestOutlineNavigationAndSwitch(t *testing.T) {
	m := newTestModel(t, "intro", "setup", "deploy")
	m.pane = PaneOutline

	m.Update(keyMsg("j"))
	m.Update(keyMsg("j"))
	assert.Equal(t, 2, m.cursor)

	m.Update(keyMsg("enter"))
	assert.Equal(t, "ch-deploy", m.sess.ActiveChapter().ID)

	m.Update(keyMsg("k"))
	assert.Equal(t, 1, m.cursor)
}

func TestOutlineCollapseHidesChildren(t *testing.T) {
	m := newTestModel(t, "intro")
	_, err := m.sess.AddChapter("ch-intro", "Background")
	require.NoError(t, err)
	m.refreshRows()
	require.Len(t, m.rows, 2)

	m.pane = PaneOutline
	m.cursor = 0
	m.Update(keyMsg(" "))

	assert.Len(t, m.rows, 1, "collapsed chapter hides its children")

	m.Update(keyMsg(" "))
	assert.Len(t, m.rows, 2)
}

func TestOutlineAddAndDelete(t *testing.T) {
	m := newTestModel(t)
	m.pane = PaneOutline

	m.Update(keyMsg("n"))
	require.Len(t, m.rows, 1)
	assert.NotNil(t, m.sess.ActiveChapter())

	m.Update(keyMsg("d"))
	assert.Empty(t, m.rows)
	assert.Nil(t, m.sess.ActiveChapter())
}

func TestPreviewRoundTripKeepsContent(t *testing.T) {
	m := newTestModel(t, "intro")
	require.NoError(t, m.sess.EditActiveChapter("# Intro\n\nDraft text."))
	m.loadActiveChapter()

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, session.ModePreview, m.sess.Mode())

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, session.ModeWrite, m.sess.Mode())
	assert.Equal(t, "# Intro\n\nDraft text.", m.sess.ActiveChapter().Content)
}

func TestPromptSubmit(t *testing.T) {
	m := newTestModel(t, "intro")
	m.Update(tea.KeyMsg{Type: tea.KeyTab}) // focus assistant
	require.Equal(t, PaneAssistant, m.Pane())

	m.prompt.SetValue("draft a first paragraph")
	_, cmd := m.handlePromptSubmit()
	require.NotNil(t, cmd)
	assert.Empty(t, m.prompt.Value())

	select {
	case res := <-m.sess.Results():
		require.NoError(t, res.Err)
		assert.Equal(t, "generated reply", res.Message.Content)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for assistant result")
	}
}

func TestPromptSubmitEmptyIsNoop(t *testing.T) {
	m := newTestModel(t, "intro")
	m.prompt.SetValue("   ")

	_, cmd := m.handlePromptSubmit()

	assert.Nil(t, cmd)
	assert.Empty(t, m.sess.Messages())
}

func TestSlashCommands(t *testing.T) {
	m := newTestModel(t, "intro")

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "outline", input: "/outline"},
		{name: "unknown", input: "/rewrite", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.handleCommand(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			// Drain the result so the next subtest starts idle.
			select {
			case <-m.sess.Results():
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for assistant result")
			}
		})
	}
}

func TestEditorCommitsOnKeystroke(t *testing.T) {
	m := newTestModel(t, "intro")
	require.Equal(t, PaneEditor, m.Pane())

	m.Update(keyMsg("hi"))
	assert.Equal(t, "hi", m.sess.ActiveChapter().Content)

	// Non-key traffic must not commit the editor buffer.
	m.editor.SetValue("uncommitted")
	m.Update(spinner.TickMsg{})
	assert.Equal(t, "hi", m.sess.ActiveChapter().Content)
}

func TestAssistantProgressShowsPartial(t *testing.T) {
	tree := outline.New()
	_, err := tree.Add("", "ch-intro", "intro")
	require.NoError(t, err)

	release := make(chan struct{})
	gen := conversation.GeneratorFunc(func(ctx context.Context, prompt, contextContent string) (string, error) {
		select {
		case <-release:
			return "final answer", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	sess := session.New(&types.Book{Title: "Guide"}, tree, conversation.New(gen))
	m := New(sess, nil)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	require.NoError(t, sess.SubmitPrompt("draft"))
	_, cmd := m.Update(assistantProgressMsg{ChapterID: "ch-intro", Text: "partial answer"})
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "partial answer")

	close(release)
	select {
	case res := <-sess.Results():
		require.NoError(t, res.Err)
		m.Update(assistantResultMsg(res))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for assistant result")
	}

	assert.Empty(t, m.partial)
	assert.Contains(t, m.View(), "final answer")
}

func TestSavedMsgShowsToast(t *testing.T) {
	m := newTestModel(t, "intro")

	m.Update(savedMsg{err: nil})

	assert.True(t, m.toast.Visible)
	assert.Equal(t, ToastSuccess, m.toast.Level)
}

func TestToastClears(t *testing.T) {
	m := newTestModel(t, "intro")
	m.Update(savedMsg{err: nil})
	require.True(t, m.toast.Visible)

	m.Update(clearToastMsg{})

	assert.False(t, m.toast.Visible)
}

func TestViewRenders(t *testing.T) {
	m := newTestModel(t, "intro")

	view := m.View()

	assert.Contains(t, view, "DRAFTSMITH")
	assert.Contains(t, view, "Chapters")
	assert.Contains(t, view, "Assistant")
}
