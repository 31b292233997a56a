// Package console renders the scrollable log of change events and status
// lines.
package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gyokuro/filewatch/internal/theme"
)

const defaultMaxEntries = 500

// Entry kinds besides the change kinds of the client package.
const (
	KindStatus = "status"
	KindError  = "error"
)

// Entry is a single console line.
type Entry struct {
	Time    time.Time
	Kind    string // a client.Kind string, KindStatus or KindError
	Message string
}

// Model holds console state.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset (from bottom)
	max     int
}

// New creates an empty console keeping at most max entries. A non-positive
// max uses the default.
func New(max int) Model {
	if max <= 0 {
		max = defaultMaxEntries
	}
	return Model{max: max}
}

// Add appends an entry and caps the buffer.
func (m *Model) Add(kind, message string) {
	m.Entries = append(m.Entries, Entry{
		Time:    time.Now(),
		Kind:    kind,
		Message: message,
	})
	if m.max > 0 && len(m.Entries) > m.max {
		m.Entries = m.Entries[len(m.Entries)-m.max:]
	}
	// Reset scroll to bottom on new entry.
	m.Offset = 0
}

// Clear drops all entries.
func (m *Model) Clear() {
	m.Entries = nil
	m.Offset = 0
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset += n
	max := len(m.Entries) - 1
	if max < 0 {
		max = 0
	}
	if m.Offset > max {
		m.Offset = max
	}
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset -= n
	if m.Offset < 0 {
		m.Offset = 0
	}
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the console in a bordered panel of the given size.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	visibleLines := height - 3
	if visibleLines < 1 {
		visibleLines = 1
	}

	title := theme.StyleHeader.Render(" CONSOLE ")

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  No events received yet.")
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
	}

	// Build visible lines from bottom (minus offset).
	end := len(m.Entries) - m.Offset
	start := end - visibleLines
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = 0
	}

	var lines []string
	for i := start; i < end; i++ {
		lines = append(lines, renderEntry(m.Entries[i], innerW))
	}

	body := strings.Join(lines, "\n")
	if m.Offset > 0 {
		body += "\n" + theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

func renderEntry(e Entry, width int) string {
	ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
	style := lipgloss.NewStyle().Foreground(entryColor(e.Kind))
	msg := e.Message
	if limit := width - 16; limit > 3 && len(msg) > limit {
		msg = msg[:limit-3] + "..."
	}
	return fmt.Sprintf("%s %s %s", ts, style.Render(entryGlyph(e.Kind)), style.Render(msg))
}

func entryColor(kind string) lipgloss.Color {
	switch kind {
	case KindStatus:
		return theme.ColorBright
	case KindError:
		return theme.ColorDanger
	default:
		return theme.KindColor(kind)
	}
}

func entryGlyph(kind string) string {
	switch kind {
	case KindStatus:
		return "*"
	case KindError:
		return "!"
	default:
		return theme.KindGlyph(kind)
	}
}
