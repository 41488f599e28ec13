// Package tui provides the terminal user interface using Bubble Tea.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/draftsmith/draftsmith/internal/conversation"
	"github.com/draftsmith/draftsmith/internal/metrics"
	"github.com/draftsmith/draftsmith/internal/session"
	"github.com/draftsmith/draftsmith/internal/tui/styles"
	"github.com/draftsmith/draftsmith/pkg/types"
)

// Pane identifies which panel has keyboard focus.
type Pane int

const (
	PaneOutline Pane = iota
	PaneEditor
	PaneAssistant
)

const (
	outlineWidth   = 28
	assistantWidth = 40
	chromeHeight   = 6
)

// SaveFunc persists the session. Wired by the caller so the model stays
// independent of the storage layer.
type SaveFunc func(*session.Session) error

// outlineRow is one visible line of the outline sidebar.
type outlineRow struct {
	chapter *types.Chapter
	depth   int
}

// Messages produced by background work.
type assistantResultMsg conversation.Result

type assistantProgressMsg conversation.Progress

type savedMsg struct {
	err error
}

type errMsg struct {
	err error
}

// Model is the main editor TUI model.
type Model struct {
	sess *session.Session
	save SaveFunc

	pane   Pane
	width  int
	height int
	ready  bool
	err    error

	editor  textarea.Model
	preview viewport.Model
	chat    viewport.Model
	prompt  textarea.Model
	spinner spinner.Model
	toast   Toast

	rows    []outlineRow
	cursor  int
	partial string
}

// New creates the editor model for an open session.
func New(sess *session.Session, save SaveFunc) *Model {
	ed := textarea.New()
	ed.Placeholder = "Start writing..."
	ed.CharLimit = 0
	ed.ShowLineNumbers = false

	pr := textarea.New()
	pr.Placeholder = "Ask the assistant... (/outline, /expand, /polish)"
	pr.CharLimit = 2000
	pr.SetHeight(2)
	pr.ShowLineNumbers = false
	pr.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	m := &Model{
		sess:    sess,
		save:    save,
		pane:    PaneEditor,
		editor:  ed,
		prompt:  pr,
		spinner: sp,
	}
	m.refreshRows()
	m.loadActiveChapter()
	m.editor.Focus()
	return m
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.awaitProgress(),
	)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case spinner.TickMsg:
		if m.sess.Busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case assistantProgressMsg:
		m.partial = msg.Text
		m.refreshChat()
		cmds = append(cmds, m.awaitProgress())

	case assistantResultMsg:
		m.partial = ""
		m.refreshChat()
		if msg.Err != nil {
			m.err = msg.Err
		}

	case savedMsg:
		var cmd tea.Cmd
		if msg.err != nil {
			m.toast, cmd = showToast("Save failed: "+msg.err.Error(), ToastError)
		} else {
			m.toast, cmd = showToast("Book saved", ToastSuccess)
		}
		cmds = append(cmds, cmd)

	case clearToastMsg:
		m.toast.Update(msg)

	case errMsg:
		m.err = msg.err
	}

	// Key input is handled above; edits commit from the key path, so
	// tick and blink traffic never touches chapter content.
	if m.pane == PaneEditor && m.sess.Mode() == session.ModeWrite {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.pane == PaneAssistant {
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.preview, cmd = m.preview.Update(msg)
	cmds = append(cmds, cmd)
	m.chat, cmd = m.chat.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKeyMsg handles keyboard input.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.sess.Busy() {
			m.sess.CancelGeneration()
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyTab:
		m.cyclePane()
		return m, nil

	case tea.KeyCtrlP:
		m.togglePreview()
		return m, nil

	case tea.KeyCtrlS:
		return m, m.saveCmd()

	case tea.KeyEsc:
		if m.sess.Busy() {
			m.sess.CancelGeneration()
			return m, nil
		}
	}

	switch m.pane {
	case PaneOutline:
		return m.handleOutlineKey(msg)
	case PaneAssistant:
		if msg.Type == tea.KeyEnter {
			return m.handlePromptSubmit()
		}
	}

	return m.passThrough(msg)
}

// passThrough routes unhandled keys to the focused component.
func (m *Model) passThrough(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if m.pane == PaneEditor && m.sess.Mode() == session.ModeWrite {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		cmds = append(cmds, cmd)
		m.commitContent()
	}
	if m.pane == PaneAssistant {
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.pane == PaneEditor && m.sess.Mode() == session.ModePreview {
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// handleOutlineKey handles keys while the outline sidebar is focused.
func (m *Model) handleOutlineKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case "enter":
		if row := m.selectedRow(); row != nil {
			if err := m.sess.SwitchChapter(row.chapter.ID); err != nil {
				m.err = err
				return m, nil
			}
			m.loadActiveChapter()
		}

	case " ":
		if row := m.selectedRow(); row != nil {
			if err := m.sess.ToggleExpand(row.chapter.ID); err != nil {
				m.err = err
				return m, nil
			}
			m.refreshRows()
		}

	case "n":
		ch, err := m.sess.AddChapter("", fmt.Sprintf("Chapter %d", len(m.rows)+1))
		if err != nil {
			m.err = err
			return m, nil
		}
		m.refreshRows()
		m.moveCursorTo(ch.ID)
		m.loadActiveChapter()

	case "a":
		if row := m.selectedRow(); row != nil {
			ch, err := m.sess.AddChapter(row.chapter.ID, "New Section")
			if err != nil {
				m.err = err
				return m, nil
			}
			m.refreshRows()
			m.moveCursorTo(ch.ID)
			m.loadActiveChapter()
		}

	case "d":
		if row := m.selectedRow(); row != nil {
			if err := m.sess.RemoveChapter(row.chapter.ID); err != nil {
				m.err = err
				return m, nil
			}
			m.refreshRows()
			if m.cursor >= len(m.rows) && m.cursor > 0 {
				m.cursor--
			}
			m.loadActiveChapter()
		}
	}

	return m, nil
}

// handlePromptSubmit sends the prompt box content to the assistant.
func (m *Model) handlePromptSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.prompt.Value())
	if input == "" {
		return m, nil
	}

	var err error
	if strings.HasPrefix(input, "/") {
		err = m.handleCommand(input)
	} else {
		err = m.sess.SubmitPrompt(input)
	}
	if err != nil {
		m.err = err
		return m, nil
	}

	m.prompt.Reset()
	m.refreshChat()
	return m, tea.Batch(m.awaitResult(), m.spinner.Tick)
}

// handleCommand processes slash commands in the prompt box.
func (m *Model) handleCommand(input string) error {
	cmd := strings.ToLower(strings.Fields(input)[0])

	switch cmd {
	case "/outline":
		return m.sess.QuickAction(conversation.ActionOutline)
	case "/expand":
		return m.sess.QuickAction(conversation.ActionExpand)
	case "/polish":
		return m.sess.QuickAction(conversation.ActionPolish)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// awaitResult blocks on the next assistant result and feeds it back into
// the update loop.
func (m *Model) awaitResult() tea.Cmd {
	results := m.sess.Results()
	return func() tea.Msg {
		res, ok := <-results
		if !ok {
			return nil
		}
		return assistantResultMsg(res)
	}
}

// awaitProgress relays streamed partial text into the update loop,
// re-arming itself after each delivery.
func (m *Model) awaitProgress() tea.Cmd {
	progress := m.sess.Progress()
	return func() tea.Msg {
		p, ok := <-progress
		if !ok {
			return nil
		}
		return assistantProgressMsg(p)
	}
}

// saveCmd persists the session in the background.
func (m *Model) saveCmd() tea.Cmd {
	if m.save == nil {
		return nil
	}
	return func() tea.Msg {
		return savedMsg{err: m.save(m.sess)}
	}
}

// commitContent pushes the editor buffer into the active chapter.
func (m *Model) commitContent() {
	active := m.sess.ActiveChapter()
	if active == nil {
		return
	}
	if m.editor.Value() != active.Content {
		if err := m.sess.EditActiveChapter(m.editor.Value()); err != nil {
			m.err = err
		}
	}
}

// loadActiveChapter syncs the editor and preview with the active chapter.
func (m *Model) loadActiveChapter() {
	active := m.sess.ActiveChapter()
	if active == nil {
		m.editor.Reset()
		m.preview.SetContent("")
		return
	}
	m.editor.SetValue(active.Content)
	m.refreshPreview()
}

// togglePreview flips between write and preview mode.
func (m *Model) togglePreview() {
	m.sess.ToggleMode()
	if m.sess.Mode() == session.ModePreview {
		m.commitContent()
		m.refreshPreview()
	}
}

func (m *Model) refreshPreview() {
	if m.sess.ActiveChapter() == nil {
		m.preview.SetContent(styles.MutedText.Render("No chapter selected."))
		return
	}
	html, err := m.sess.Preview()
	if err != nil {
		m.err = err
		return
	}
	m.preview.SetContent(html)
}

// refreshRows rebuilds the visible outline rows, skipping children of
// collapsed chapters.
func (m *Model) refreshRows() {
	m.rows = m.rows[:0]
	var visit func(chs []*types.Chapter, depth int)
	visit = func(chs []*types.Chapter, depth int) {
		for _, ch := range chs {
			m.rows = append(m.rows, outlineRow{chapter: ch, depth: depth})
			if ch.Expanded {
				visit(ch.Children, depth+1)
			}
		}
	}
	visit(m.sess.Outline(), 0)

	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) selectedRow() *outlineRow {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return &m.rows[m.cursor]
}

func (m *Model) moveCursorTo(id string) {
	for i, row := range m.rows {
		if row.chapter.ID == id {
			m.cursor = i
			return
		}
	}
}

// refreshChat re-renders the assistant panel from the conversation log.
func (m *Model) refreshChat() {
	var sb strings.Builder
	for _, msg := range m.sess.Messages() {
		switch msg.Role {
		case types.RoleUser:
			sb.WriteString(styles.UserMessage.Render("You: " + msg.Content))
		case types.RoleAssistant:
			sb.WriteString(styles.AssistantMessage.Render("AI: " + msg.Content))
		}
		sb.WriteString("\n\n")
	}
	if m.sess.Busy() {
		if m.partial != "" {
			sb.WriteString(styles.AssistantMessage.Render("AI: " + m.partial))
		} else {
			sb.WriteString(m.spinner.View() + " Thinking...")
		}
	}
	m.chat.SetContent(sb.String())
	m.chat.GotoBottom()
}

func (m *Model) cyclePane() {
	m.editor.Blur()
	m.prompt.Blur()

	switch m.pane {
	case PaneOutline:
		m.pane = PaneEditor
		m.editor.Focus()
	case PaneEditor:
		m.pane = PaneAssistant
		m.prompt.Focus()
	case PaneAssistant:
		m.pane = PaneOutline
	}
}

// layout recomputes component sizes after a resize.
func (m *Model) layout() {
	mainWidth := m.width - outlineWidth - assistantWidth - 6
	if mainWidth < 20 {
		mainWidth = 20
	}
	contentHeight := m.height - chromeHeight
	if contentHeight < 5 {
		contentHeight = 5
	}

	if !m.ready {
		m.preview = viewport.New(mainWidth, contentHeight)
		m.chat = viewport.New(assistantWidth-4, contentHeight-4)
		m.ready = true
	} else {
		m.preview.Width = mainWidth
		m.preview.Height = contentHeight
		m.chat.Width = assistantWidth - 4
		m.chat.Height = contentHeight - 4
	}

	m.editor.SetWidth(mainWidth)
	m.editor.SetHeight(contentHeight)
	m.prompt.SetWidth(assistantWidth - 4)
	m.refreshChat()
}

// Pane returns the focused pane.
func (m *Model) Pane() Pane {
	return m.pane
}

// View renders the TUI.
func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := styles.Header.Render(fmt.Sprintf("DRAFTSMITH - %s", m.sess.Book().Title))
	total := metrics.TotalWords(m.sess.Outline())
	words := styles.WordCount.Render(fmt.Sprintf("%d words", total))
	top := lipgloss.JoinHorizontal(lipgloss.Center, header, "  ", words)

	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.viewOutline(),
		m.viewMain(),
		m.viewAssistant(),
	)

	var status string
	if m.err != nil {
		status = styles.ErrorText.Render("Error: " + m.err.Error())
		m.err = nil
	} else {
		mode := string(m.sess.Mode())
		hints := styles.HelpKey.Render("tab") + styles.HelpDesc.Render(" focus  ") +
			styles.HelpKey.Render("ctrl+p") + styles.HelpDesc.Render(" preview  ") +
			styles.HelpKey.Render("ctrl+s") + styles.HelpDesc.Render(" save  ") +
			styles.HelpKey.Render("ctrl+c") + styles.HelpDesc.Render(" quit")
		status = styles.StatusBar.Render(fmt.Sprintf("[%s] ", mode)) + " " + hints
	}

	screen := top + "\n" + body + "\n" + status
	return renderToastTopRight(m.toast.View(m.width), screen, 1)
}

// viewOutline renders the chapter sidebar.
func (m *Model) viewOutline() string {
	var sb strings.Builder
	sb.WriteString(styles.Title.Render("Chapters"))
	sb.WriteString("\n\n")

	if len(m.rows) == 0 {
		sb.WriteString(styles.MutedText.Render("No chapters yet.\nPress n to add one."))
	}

	activeID := ""
	if active := m.sess.ActiveChapter(); active != nil {
		activeID = active.ID
	}

	for i, row := range m.rows {
		marker := "  "
		if len(row.chapter.Children) > 0 {
			if row.chapter.Expanded {
				marker = "▾ "
			} else {
				marker = "▸ "
			}
		}

		line := strings.Repeat("  ", row.depth) + marker + row.chapter.Title
		count := styles.WordCount.Render(fmt.Sprintf(" (%d)", row.chapter.WordCount))

		switch {
		case i == m.cursor && m.pane == PaneOutline:
			sb.WriteString(styles.OutlineSelected.Render("> " + line))
		case row.chapter.ID == activeID:
			sb.WriteString(styles.OutlineSelected.Render("  " + line))
		default:
			sb.WriteString(styles.OutlineItem.Render("  " + line))
		}
		sb.WriteString(count)
		sb.WriteString("\n")
	}

	style := styles.Pane
	if m.pane == PaneOutline {
		style = styles.FocusedPane
	}
	return style.Width(outlineWidth).Height(m.height - chromeHeight).Render(sb.String())
}

// viewMain renders the editor or the markdown preview.
func (m *Model) viewMain() string {
	style := styles.Pane
	if m.pane == PaneEditor {
		style = styles.FocusedPane
	}

	if m.sess.Mode() == session.ModePreview {
		title := styles.Subtitle.Render("Preview")
		return style.Render(title + "\n" + m.preview.View())
	}
	return style.Render(m.editor.View())
}

// viewAssistant renders the conversation panel and prompt box.
func (m *Model) viewAssistant() string {
	style := styles.Pane
	if m.pane == PaneAssistant {
		style = styles.FocusedPane
	}

	var sb strings.Builder
	sb.WriteString(styles.Title.Render("Assistant"))
	sb.WriteString("\n")
	sb.WriteString(m.chat.View())
	sb.WriteString("\n")
	sb.WriteString(styles.InputPrompt.Render("> "))
	sb.WriteString(m.prompt.View())

	return style.Width(assistantWidth).Render(sb.String())
}
