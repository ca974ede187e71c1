package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#444466"))

	statusRunning = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff88"))
	statusDone    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ccff"))
	statusFailed  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4444"))

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888899")).Width(16)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ccff")).Bold(true)
	graphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688")).Italic(true).MarginTop(1)

	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	midStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

// progressBar renders a fraction in [0, 1] as a bar width cells wide.
func progressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	switch {
	case fraction >= 1:
		return goodStyle.Render(bar)
	case fraction > 0.4:
		return midStyle.Render(bar)
	default:
		return badStyle.Render(bar)
	}
}

// normStyle colours a scaled norm by how far it is from converged.
func normStyle(norm float64) lipgloss.Style {
	switch {
	case norm <= 1e-5:
		return goodStyle
	case norm <= 1e-2:
		return midStyle
	default:
		return badStyle
	}
}
