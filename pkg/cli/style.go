package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	User    lipgloss.Color // User transcript color
	Dim     lipgloss.Color // Dimmed/help text color
	Error   lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	User:    lipgloss.Color("#58a6ff"),
	Dim:     lipgloss.Color("#6e7681"),
	Error:   lipgloss.Color("#ff5f5f"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Assistant lipgloss.Style
	User      lipgloss.Style
	Speaking  lipgloss.Style
	Help      lipgloss.Style
	Error     lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Assistant: lipgloss.NewStyle().Foreground(t.Primary),
		User:      lipgloss.NewStyle().Foreground(t.User),
		Speaking:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Help:      lipgloss.NewStyle().Foreground(t.Dim),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}

// Indicator renders the speaking indicator, or spaces of the same width
// when idle so the line does not shift.
func (s Styles) Indicator(speaking bool) string {
	const label = "● speaking"
	if !speaking {
		return s.Help.Render("○ idle    ")
	}
	return s.Speaking.Render(label)
}

// Label renders a transcript prefix such as "you" or "ai".
func (s Styles) Label(role string) string {
	switch role {
	case "user":
		return s.User.Bold(true).Render("you ›")
	case "assistant":
		return s.Assistant.Bold(true).Render(" ai ›")
	}
	return s.Help.Render(role + " ›")
}
