package status

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gyokuro/filewatch/internal/client"
	"github.com/gyokuro/filewatch/internal/theme"
)

const (
	fps        = 20
	meterWidth = 12
	decay      = 0.85
)

// TickMsg advances the activity meter animation.
type TickMsg time.Time

// Tick schedules the next animation frame.
func Tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model holds the status bar state.
type Model struct {
	State  client.State
	Status string
	URL    string
	Counts map[client.Kind]int
	Width  int

	// activity meter
	spring   harmonica.Spring
	level    float64
	velocity float64
	target   float64
}

// New creates a status bar model.
func New() Model {
	return Model{
		Counts: make(map[client.Kind]int),
		spring: harmonica.NewSpring(harmonica.FPS(fps), 8.0, 0.6),
	}
}

// Record counts a change event and kicks the activity meter.
func (m *Model) Record(k client.Kind) {
	m.Counts[k]++
	m.target = 1
}

// ResetCounts zeroes the per-kind counters.
func (m *Model) ResetCounts() {
	m.Counts = make(map[client.Kind]int)
}

// Animate steps the meter by one frame. It reports whether the meter is
// still moving, so the caller can stop ticking when it settles.
func (m *Model) Animate() bool {
	m.level, m.velocity = m.spring.Update(m.level, m.velocity, m.target)
	m.target *= decay
	if m.target < 0.01 {
		m.target = 0
	}
	if m.level < 0 {
		m.level = 0
	}
	return m.target > 0 || m.level > 0.01 || m.velocity > 0.01 || m.velocity < -0.01
}

// Level returns the current meter level in [0, 1].
func (m Model) Level() float64 {
	if m.level > 1 {
		return 1
	}
	return m.level
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	stateStr := lipgloss.NewStyle().
		Foreground(theme.StateColor(m.State.String())).
		Render("● " + strings.ToUpper(m.State.String()))

	parts := []string{stateStr}
	if m.Status != "" {
		parts = append(parts, m.Status)
	}
	if m.URL != "" {
		parts = append(parts, theme.StyleDimmed.Render(m.URL))
	}

	kinds := []client.Kind{client.KindCreated, client.KindDeleted, client.KindRenamed, client.KindOther, client.KindParseError}
	var counts []string
	for _, k := range kinds {
		counts = append(counts, lipgloss.NewStyle().Foreground(theme.KindColor(k.String())).Render(
			fmt.Sprintf("%s %s", theme.KindGlyph(k.String()), humanize.Comma(int64(m.Counts[k]))),
		))
	}
	parts = append(parts, strings.Join(counts, " "), m.meter())

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.Join(parts, sep))
}

func (m Model) meter() string {
	filled := int(m.Level()*meterWidth + 0.5)
	bar := strings.Repeat("▮", filled) + strings.Repeat("▯", meterWidth-filled)
	return lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render(bar)
}
