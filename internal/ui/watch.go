package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ypwhs/cp02-monitor/internal/telemetry"
)

// tickMsg drives the refresh cycle.
type tickMsg time.Time

// pollDoneMsg reports a completed poll attempt.
type pollDoneMsg telemetry.Outcome

// WatchModel is the live telemetry screen. It owns nothing: the poller is
// driven on tick and the port state is read back as value snapshots, so the
// screen can never corrupt the model.
type WatchModel struct {
	model    *telemetry.Model
	poller   *telemetry.Poller
	interval time.Duration

	portBars []progress.Model
	totalBar progress.Model

	width    int
	quitting bool
}

// NewWatch creates the live display over an existing model and poller.
// interval is the refresh cadence, normally the configured poll interval.
func NewWatch(model *telemetry.Model, poller *telemetry.Poller, interval time.Duration) WatchModel {
	bars := make([]progress.Model, telemetry.MaxPorts)
	for i := range bars {
		bars[i] = progress.New(
			progress.WithGradient("#22c55e", "#ef4444"),
			progress.WithoutPercentage(),
		)
	}
	return WatchModel{
		model:    model,
		poller:   poller,
		interval: interval,
		portBars: bars,
		totalBar: progress.New(
			progress.WithGradient("#3b82f6", "#f97316"),
			progress.WithoutPercentage(),
		),
	}
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.pollCmd(), m.tickCmd())
}

func (m WatchModel) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// pollCmd runs one poll attempt off the UI goroutine. The poller's own
// gates keep overlapping commands harmless.
func (m WatchModel) pollCmd() tea.Cmd {
	return func() tea.Msg {
		return pollDoneMsg(m.poller.Poll())
	}
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		barWidth := msg.Width - 30
		if barWidth < 10 {
			barWidth = 10
		}
		for i := range m.portBars {
			m.portBars[i].Width = barWidth
		}
		m.totalBar.Width = barWidth

	case tickMsg:
		return m, tea.Batch(m.pollCmd(), m.tickCmd())

	case pollDoneMsg:
		// Snapshot is re-read in View; nothing to do here.
		return m, nil
	}

	return m, nil
}

func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	snap := m.model.Snapshot()

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("CP-02 Monitor"),
		"  ",
		connectivityBadge(snap.Connectivity),
	))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("target %s", m.poller.TargetURL())))
	b.WriteString("\n")

	for i, port := range snap.Ports {
		ratio := port.PowerW / maxPortWatts
		if ratio > 1 {
			ratio = 1
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center,
			portNameStyle.Render(port.Name),
			powerValueStyle.Render(fmt.Sprintf("%.2fW", port.PowerW)),
			"  ",
			m.portBars[i].ViewAs(ratio),
			"  ",
			detailStyle.Render(portDetail(port)),
		))
		b.WriteString("\n")
	}

	totalRatio := snap.TotalPowerW / maxTotalWatts
	if totalRatio > 1 {
		totalRatio = 1
	}
	b.WriteString(totalStyle.Render(lipgloss.JoinHorizontal(lipgloss.Center,
		portNameStyle.Render("Σ"),
		powerValueStyle.Render(fmt.Sprintf("%.2fW", snap.TotalPowerW)),
		"  ",
		m.totalBar.ViewAs(totalRatio),
	)))
	b.WriteString("\n")

	if !snap.UpdatedAt.IsZero() {
		b.WriteString(helpStyle.Render(fmt.Sprintf("updated %s ago  •  q to quit",
			time.Since(snap.UpdatedAt).Round(time.Second))))
	} else {
		b.WriteString(helpStyle.Render("waiting for first sample  •  q to quit"))
	}
	b.WriteString("\n")

	return b.String()
}

// portDetail renders the per-port electrical readout.
func portDetail(p telemetry.PortRecord) string {
	if p.CurrentMA == 0 && p.VoltageMV == 0 {
		return "idle"
	}
	return fmt.Sprintf("%dmV %dmA", p.VoltageMV, p.CurrentMA)
}

func connectivityBadge(c telemetry.ConnectivityState) string {
	switch c {
	case telemetry.Connected:
		return badgeConnected.Render("CONNECTED")
	case telemetry.Connecting:
		return badgeConnecting.Render("CONNECTING")
	case telemetry.DataError:
		return badgeDataError.Render("DATA ERROR")
	default:
		return badgeDisconnected.Render("OFFLINE")
	}
}
