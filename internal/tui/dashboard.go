package tui

import (
	"fmt"
	"strings"
	"time"
)

// maxHistoryRows bounds the recent connections list.
const maxHistoryRows = 8

// DashboardData holds data for the dashboard view.
type DashboardData struct {
	HasStatus       bool
	Connected       bool
	LastCheck       string
	Stale           bool
	MethodUsed      string
	DetectionMethod string
	ScanInterval    int

	DaemonRunning bool
	PID           int

	ConnectionsToday int
	TotalConnections int
	TotalDuration    time.Duration
	LastConnection   string
	History          []string
}

// Dashboard is the main dashboard view.
type Dashboard struct {
	data   *DashboardData
	width  int
	height int
}

// NewDashboard creates a new dashboard.
func NewDashboard(msg dataMsg, width, height int) *Dashboard {
	return &Dashboard{
		data:   msg.Data,
		width:  width,
		height: height,
	}
}

// SetSize updates the dashboard size.
func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// View renders the dashboard.
func (d *Dashboard) View() string {
	var sb strings.Builder

	header := HeaderStyle.Width(d.sectionWidth() + 4).Render("NetSupport Monitor")
	sb.WriteString(header)
	sb.WriteString("\n\n")

	sb.WriteString(d.renderStatusSection())
	sb.WriteString("\n")

	sb.WriteString(d.renderStatsSection())
	sb.WriteString("\n")

	sb.WriteString(d.renderHistorySection())
	sb.WriteString("\n")

	help := HelpStyle.Render("Press 'r' to refresh • 'q' to quit")
	sb.WriteString(help)

	return sb.String()
}

func (d *Dashboard) sectionWidth() int {
	w := d.width - 4
	if w < 40 {
		w = 40
	}
	return w
}

func (d *Dashboard) renderStatusSection() string {
	verdict := SafeStyle.Render("SAFE")
	if d.data.Connected {
		verdict = ConnectedStyle.Render("CONNECTED")
	}

	lastCheck := d.data.LastCheck
	if lastCheck == "" {
		lastCheck = "never"
	}
	if d.data.Stale {
		lastCheck += " " + WarningStyle.Render("(stale)")
	}

	method := d.data.MethodUsed
	if method == "" {
		method = "-"
	}

	daemon := RenderStatus(d.data.DaemonRunning,
		fmt.Sprintf("running (pid %d)", d.data.PID), "stopped")

	content := fmt.Sprintf(
		"%s\n\n%s %s\n%s %s\n%s %s\n%s %s",
		verdict,
		LabelStyle.Render("Last Check:"),
		ValueStyle.Render(lastCheck),
		LabelStyle.Render("Method Used:"),
		ValueStyle.Render(method),
		LabelStyle.Render("Configured:"),
		ValueStyle.Render(fmt.Sprintf("%s every %ds", d.data.DetectionMethod, d.data.ScanInterval)),
		LabelStyle.Render("Daemon:"),
		daemon,
	)

	return SectionStyle.Width(d.sectionWidth()).Render(
		SectionTitleStyle.Render("Status") + "\n" + content)
}

func (d *Dashboard) renderStatsSection() string {
	last := d.data.LastConnection
	if last == "" {
		last = "-"
	}

	content := fmt.Sprintf(
		"%s %s\n%s %s\n%s %s\n%s %s",
		LabelStyle.Render("Today:"),
		ValueStyle.Render(fmt.Sprintf("%d", d.data.ConnectionsToday)),
		LabelStyle.Render("Total:"),
		ValueStyle.Render(fmt.Sprintf("%d", d.data.TotalConnections)),
		LabelStyle.Render("Connected For:"),
		ValueStyle.Render(d.data.TotalDuration.String()),
		LabelStyle.Render("Last Seen:"),
		ValueStyle.Render(last),
	)

	return SectionStyle.Width(d.sectionWidth()).Render(
		SectionTitleStyle.Render("Statistics") + "\n" + content)
}

func (d *Dashboard) renderHistorySection() string {
	if len(d.data.History) == 0 {
		content := DimStyle.Render("No connections recorded yet")
		return SectionStyle.Width(d.sectionWidth()).Render(
			SectionTitleStyle.Render("Recent Connections") + "\n" + content)
	}

	rows := d.data.History
	if len(rows) > maxHistoryRows {
		rows = rows[:maxHistoryRows]
	}

	var lines []string
	for i, row := range rows {
		style := TableRowStyle
		if i%2 == 1 {
			style = TableRowAltStyle
		}
		lines = append(lines, style.Render(row))
	}

	if len(d.data.History) > maxHistoryRows {
		lines = append(lines, DimStyle.Render(fmt.Sprintf("... and %d more", len(d.data.History)-maxHistoryRows)))
	}

	content := strings.Join(lines, "\n")
	return SectionStyle.Width(d.sectionWidth()).Render(
		SectionTitleStyle.Render("Recent Connections") + "\n" + content)
}
