package tui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF")).
			MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))

	focusedPanelStyle = panelStyle.BorderForeground(lipgloss.Color("#5B8DEF"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(lipgloss.Color("#3B4252"))

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))

	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))

	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))

	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)

	sentimentStyles = map[string]lipgloss.Style{
		"positive": lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
		"neutral":  lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")),
		"negative": lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
	}

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC")).
			Background(lipgloss.Color("#2E3440")).
			Padding(0, 1)
)
