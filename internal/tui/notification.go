package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/ansi"
	"github.com/muesli/reflow/truncate"
)

type ToastLevel int

const (
	ToastInfo ToastLevel = iota
	ToastSuccess
	ToastError
)

const toastDuration = 3 * time.Second

type Toast struct {
	Message string
	Level   ToastLevel
	Visible bool
}

type clearToastMsg struct{}

var (
	toastBaseStyle = lipgloss.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder())

	toastInfoStyle = toastBaseStyle.
			BorderForeground(lipgloss.Color("#00D7FF")).
			Foreground(lipgloss.Color("#00D7FF"))

	toastSuccessStyle = toastBaseStyle.
				BorderForeground(lipgloss.Color("#10B981")).
				Foreground(lipgloss.Color("#10B981"))

	toastErrorStyle = toastBaseStyle.
			BorderForeground(lipgloss.Color("#EF4444")).
			Foreground(lipgloss.Color("#EF4444"))
)

func (t Toast) icon() string {
	switch t.Level {
	case ToastSuccess:
		return "✓"
	case ToastError:
		return "✗"
	default:
		return "ℹ"
	}
}

func (t Toast) style() lipgloss.Style {
	switch t.Level {
	case ToastSuccess:
		return toastSuccessStyle
	case ToastError:
		return toastErrorStyle
	default:
		return toastInfoStyle
	}
}

func showToast(msg string, level ToastLevel) (Toast, tea.Cmd) {
	return Toast{
			Message: msg,
			Level:   level,
			Visible: true,
		},
		tea.Tick(toastDuration, func(time.Time) tea.Msg {
			return clearToastMsg{}
		})
}

func (t *Toast) Update(msg tea.Msg) {
	if _, ok := msg.(clearToastMsg); ok {
		t.Visible = false
		t.Message = ""
	}
}

func (t Toast) View(maxWidth int) string {
	if !t.Visible || t.Message == "" {
		return ""
	}

	msg := t.Message
	if maxWidth > 0 && len(msg) > maxWidth-10 {
		msg = msg[:maxWidth-13] + "..."
	}

	return t.style().Render(t.icon() + " " + msg)
}

func getLines(s string) (lines []string, widest int) {
	lines = strings.Split(s, "\n")
	for _, l := range lines {
		w := ansi.PrintableRuneWidth(l)
		if widest < w {
			widest = w
		}
	}
	return lines, widest
}

// placeOverlay draws fg on top of bg at the given position.
func placeOverlay(x, y int, fg, bg string) string {
	fgLines, fgWidth := getLines(fg)
	bgLines, bgWidth := getLines(bg)
	bgHeight := len(bgLines)
	fgHeight := len(fgLines)

	if fgWidth >= bgWidth && fgHeight >= bgHeight {
		return fg
	}

	if x < 0 {
		x = 0
	}
	if x > bgWidth-fgWidth {
		x = bgWidth - fgWidth
	}
	if y < 0 {
		y = 0
	}
	if y > bgHeight-fgHeight {
		y = bgHeight - fgHeight
	}

	var b strings.Builder
	for i, bgLine := range bgLines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if i < y || i >= y+fgHeight {
			b.WriteString(bgLine)
			continue
		}

		pos := 0
		if x > 0 {
			left := truncate.String(bgLine, uint(x))
			pos = ansi.PrintableRuneWidth(left)
			b.WriteString(left)
			if pos < x {
				b.WriteString(strings.Repeat(" ", x-pos))
				pos = x
			}
		}

		fgLine := fgLines[i-y]
		b.WriteString(fgLine)
		pos += ansi.PrintableRuneWidth(fgLine)

		if pos < ansi.PrintableRuneWidth(bgLine) {
			b.WriteString(truncateLeftString(bgLine, pos))
		}
	}

	return b.String()
}

func truncateLeftString(s string, skip int) string {
	width := 0
	for i, r := range s {
		if width >= skip {
			return s[i:]
		}
		width += ansi.PrintableRuneWidth(string(r))
	}
	return ""
}

func renderToastTopRight(toast, background string, padding int) string {
	if toast == "" {
		return background
	}

	toastWidth := lipgloss.Width(toast)
	bgWidth := lipgloss.Width(background)

	return placeOverlay(bgWidth-toastWidth-padding, padding, toast, background)
}
