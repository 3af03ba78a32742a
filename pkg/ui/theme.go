package ui

import "github.com/charmbracelet/lipgloss"

// Theme holds the colors and base styles of the terminal view. All styles
// are created from Renderer so tests can use a renderer without a terminal.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
	Success   lipgloss.AdaptiveColor
	Bg        lipgloss.AdaptiveColor
	BgAlt     lipgloss.AdaptiveColor

	Base     lipgloss.Style
	Cursor   lipgloss.Style
	Selected lipgloss.Style
	Disabled lipgloss.Style
	Panel    lipgloss.Style
	Focused  lipgloss.Style
}

// DefaultTheme returns the Dracula-ish palette used by arbor.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer:  r,
		Primary:   lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#F1FA8C"},
		Highlight: lipgloss.AdaptiveColor{Light: "#0077B6", Dark: "#8BE9FD"},
		Muted:     lipgloss.AdaptiveColor{Light: "#999999", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"},
		Error:     lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"},
		Success:   lipgloss.AdaptiveColor{Light: "#2B9348", Dark: "#50FA7B"},
		Bg:        lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"},
		BgAlt:     lipgloss.AdaptiveColor{Light: "#EEEEEE", Dark: "#44475A"},
	}
	t.Base = r.NewStyle()
	t.Cursor = r.NewStyle().Background(t.BgAlt).Bold(true)
	t.Selected = r.NewStyle().Foreground(t.Success).Bold(true)
	t.Disabled = r.NewStyle().Foreground(t.Muted).Strikethrough(true)
	t.Panel = r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Muted)
	t.Focused = r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Primary)
	return t
}
