package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	Title    lipgloss.Style
	Selected lipgloss.Style
	Item     lipgloss.Style
	Price    lipgloss.Style
	Muted    lipgloss.Style
	Notice   lipgloss.Style
	Alert    lipgloss.Style
	Help     lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")),
		Item:   lipgloss.NewStyle(),
		Price:  lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Notice: lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		Alert:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87")),
		Help:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
	}
}
