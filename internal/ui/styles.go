package ui

import "github.com/charmbracelet/lipgloss"

// Power scale for the bar gauges. Matches the CP-02 hardware: 65W per port
// ceiling, 160W shared budget.
const (
	maxPortWatts  = 65.0
	maxTotalWatts = 160.0
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginBottom(1)

	portNameStyle = lipgloss.NewStyle().
			Bold(true).
			Width(4)

	powerValueStyle = lipgloss.NewStyle().
			Width(9).
			Align(lipgloss.Right)

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	totalStyle = lipgloss.NewStyle().
			Bold(true).
			MarginTop(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	badgeConnected = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("40")).
			Padding(0, 1)

	badgeConnecting = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("220")).
			Padding(0, 1)

	badgeDataError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("166")).
			Padding(0, 1)

	badgeDisconnected = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("160")).
				Padding(0, 1)
)
