package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/studygarden/memquiz/core/session"
)

var (
	colorText    = lipgloss.Color("#cdd6f4")
	colorSubtext = lipgloss.Color("#a6adc8")
	colorSurface = lipgloss.Color("#45475a")
	colorAccent  = lipgloss.Color("#74c7ec")
	colorGreen   = lipgloss.Color("#a6e3a1")
	colorYellow  = lipgloss.Color("#f9e2af")
	colorPeach   = lipgloss.Color("#fab387")
	colorRed     = lipgloss.Color("#f38ba8")

	styleTitle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	styleMuted = lipgloss.NewStyle().Foreground(colorSubtext)
	styleText  = lipgloss.NewStyle().Foreground(colorText)
	styleHot   = lipgloss.NewStyle().Foreground(colorPeach).Bold(true)

	stylePane = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorSurface).
			Padding(0, 1)

	styleCorrect = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	styleWrong   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
)

func severityStyle(s session.Severity) lipgloss.Style {
	switch s {
	case session.SeverityPending:
		return lipgloss.NewStyle().Foreground(colorAccent)
	case session.SeverityOK:
		return lipgloss.NewStyle().Foreground(colorGreen)
	case session.SeverityWarn:
		return lipgloss.NewStyle().Foreground(colorYellow)
	case session.SeverityError:
		return lipgloss.NewStyle().Foreground(colorRed)
	default:
		return styleMuted
	}
}
