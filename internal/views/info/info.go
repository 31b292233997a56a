// Package info renders the server metadata panel.
package info

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/gyokuro/filewatch/internal/client"
	"github.com/gyokuro/filewatch/internal/theme"
)

// Model holds the last fetched info document and its rendering.
type Model struct {
	Loading bool
	Err     error
	Info    *client.ServerInfo

	width    int
	rendered string
}

// New creates an empty info panel.
func New() Model {
	return Model{}
}

// Set stores a fetch result and re-renders it.
func (m *Model) Set(info *client.ServerInfo, err error) {
	m.Loading = false
	m.Info = info
	m.Err = err
	m.render()
}

// SetWidth re-renders for a new terminal width.
func (m *Model) SetWidth(w int) {
	if w == m.width {
		return
	}
	m.width = w
	m.render()
}

// Markdown returns the markdown source of the panel body.
func Markdown(info *client.ServerInfo) string {
	return fmt.Sprintf("**Server** `%s`\n\n```json\n%s\n```\n", info.URL, info.Indented())
}

func (m *Model) render() {
	m.rendered = ""
	if m.Info == nil {
		return
	}
	md := Markdown(m.Info)
	wrap := m.width - 4
	if wrap < 20 {
		wrap = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		m.rendered, err = r.Render(md)
	}
	if err != nil {
		m.rendered = m.Info.Indented()
	}
	m.rendered = strings.TrimRight(m.rendered, "\n")
}

// View renders the panel.
func (m Model) View() string {
	title := theme.StyleHeader.Render(" SERVER INFO ")
	var body string
	switch {
	case m.Loading:
		body = theme.StyleDimmed.Render("  Fetching...")
	case m.Err != nil:
		body = theme.StyleError.Render("  " + m.Err.Error())
	case m.Info == nil:
		body = theme.StyleDimmed.Render("  No server info.")
	default:
		body = m.rendered
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}
