// Package theme provides the Lip Gloss color palette and reusable styles
// for the filewatch TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Change kind colors. The four event colors follow the classic console:
// green for creates, red for deletes, yellow for renames, blue otherwise.
var (
	ColorCreated    = lipgloss.Color("#22c55e")
	ColorDeleted    = lipgloss.Color("#dc2626")
	ColorRenamed    = lipgloss.Color("#eab308")
	ColorOther      = lipgloss.Color("#3b82f6")
	ColorParseError = lipgloss.Color("#a855f7")
	ColorDefault    = lipgloss.Color("#9ca3af")
)

// Connection state colors.
var (
	ColorIdle       = lipgloss.Color("#6b7280")
	ColorConnecting = lipgloss.Color("#d97706")
	ColorOpen       = lipgloss.Color("#16a34a")
	ColorClosed     = lipgloss.Color("#4b5563")
	ColorFailed     = lipgloss.Color("#dc2626")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorFocus   = lipgloss.Color("#7c3aed")
)

// KindColor returns the Lip Gloss color for a change kind string.
func KindColor(kind string) lipgloss.Color {
	switch kind {
	case "created":
		return ColorCreated
	case "deleted":
		return ColorDeleted
	case "renamed":
		return ColorRenamed
	case "other":
		return ColorOther
	case "parse_error":
		return ColorParseError
	default:
		return ColorDefault
	}
}

// KindGlyph returns a short marker for a change kind string.
func KindGlyph(kind string) string {
	switch kind {
	case "created":
		return "+"
	case "deleted":
		return "-"
	case "renamed":
		return ">"
	case "other":
		return "~"
	case "parse_error":
		return "?"
	default:
		return "·"
	}
}

// StateColor returns the Lip Gloss color for a connection state string.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "idle":
		return ColorIdle
	case "connecting":
		return ColorConnecting
	case "open":
		return ColorOpen
	case "closed":
		return ColorClosed
	case "failed":
		return ColorFailed
	default:
		return ColorDefault
	}
}

// Reusable styles.
var (
	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)

	StyleLabel = lipgloss.NewStyle().
			Width(14).
			Foreground(ColorDimmed)

	StyleFocused = lipgloss.NewStyle().
			Foreground(ColorFocus)
)
