package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	Primary   = lipgloss.Color("205")
	Secondary = lipgloss.Color("86")
	Subtle    = lipgloss.Color("241")
	Success   = lipgloss.Color("46")
	Error     = lipgloss.Color("196")

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(Primary).
			Padding(0, 2).
			Align(lipgloss.Center)

	SectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Subtle).
			Padding(1, 2).
			MarginBottom(1)

	SectionTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Primary).
				MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(Subtle).
			Width(14)

	ValueStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(Subtle).
			Italic(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Subtle).
			MarginTop(1)

	LoadingStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Padding(2, 4)
)

// RenderStatus returns a styled status indicator.
func RenderStatus(ok bool, okText, failText string) string {
	if ok {
		return SuccessStyle.Render("✓ " + okText)
	}
	return ErrorStyle.Render("✗ " + failText)
}

// RenderBar renders value as a bar scaled against peak.
func RenderBar(value, peak int, width int) string {
	if peak <= 0 {
		peak = 1
	}

	filled := int(float64(value) / float64(peak) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(Secondary).Render(bar)
}
