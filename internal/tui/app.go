// Package tui provides a terminal user interface.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/nsmon/internal/daemon"
	nsmodel "github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/monitor"
	"github.com/user/nsmon/internal/storage"
	"github.com/user/nsmon/internal/util"
)

// PollInterval is how often the status files are re-read.
const PollInterval = time.Second

// App is the main TUI application.
type App struct {
	config *util.Config
}

// NewApp creates a new TUI application.
func NewApp(cfg *util.Config) *App {
	return &App{config: cfg}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(newModel(a.fetcher()), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (a *App) fetcher() fetchFunc {
	status := storage.NewStatusStore(a.config.StatusFile())
	stats := storage.NewStatsStore(a.config.StatsFile())
	return func() (*DashboardData, error) {
		return fetchDashboardData(a.config, status, stats, time.Now())
	}
}

type fetchFunc func() (*DashboardData, error)

// model is the main bubbletea model.
type model struct {
	fetch     fetchFunc
	dashboard *Dashboard
	spinner   spinner.Model
	ready     bool
	width     int
	height    int
	err       error
}

func newModel(fetch fetchFunc) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(Primary)

	return model{
		fetch:   fetch,
		spinner: s,
	}
}

// Init initializes the model.
func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		loadData(m.fetch),
	)
}

// Update handles messages.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, loadData(m.fetch)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.dashboard != nil {
			m.dashboard.SetSize(msg.Width, msg.Height)
		}

	case dataMsg:
		m.ready = true
		m.err = nil
		m.dashboard = NewDashboard(msg, m.width, m.height)
		return m, poll()

	case errMsg:
		// Keep the last good view and retry on the next poll.
		m.err = msg.err
		return m, poll()

	case pollMsg:
		return m, loadData(m.fetch)

	case spinner.TickMsg:
		if m.ready {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI.
func (m model) View() string {
	if !m.ready {
		if m.err != nil {
			return ErrorStyle.Render("Error: " + m.err.Error())
		}
		return LoadingStyle.Render(m.spinner.View() + " Loading...")
	}

	view := m.dashboard.View()
	if m.err != nil {
		view += "\n" + ErrorStyle.Render("Refresh failed: "+m.err.Error())
	}
	return view
}

// Messages
type dataMsg struct {
	Data *DashboardData
}

type errMsg struct {
	err error
}

type pollMsg time.Time

func poll() tea.Cmd {
	return tea.Tick(PollInterval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func loadData(fetch fetchFunc) tea.Cmd {
	return func() tea.Msg {
		data, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return dataMsg{Data: data}
	}
}

func fetchDashboardData(cfg *util.Config, status *storage.StatusStore, stats *storage.StatsStore, now time.Time) (*DashboardData, error) {
	data := &DashboardData{
		DetectionMethod: cfg.DetectionMethod,
		ScanInterval:    cfg.ScanInterval,
		Stale:           true,
	}

	data.DaemonRunning, data.PID = daemon.CheckRunning(cfg.DataDir)

	rec, err := status.Load()
	if err != nil {
		return nil, err
	}
	if rec != nil {
		data.HasStatus = true
		data.Connected = rec.Connected
		data.MethodUsed = rec.MethodUsed
		if rec.LastCheck != nil {
			last := rec.LastCheckTime()
			data.LastCheck = last.Format("15:04:05")
			data.Stale = now.Sub(last) > monitor.StaleAfter
		}
	}

	counters, err := stats.Load()
	if err != nil {
		return nil, err
	}
	if counters != nil {
		data.ConnectionsToday = counters.ConnectionsToday
		data.TotalConnections = counters.TotalConnections
		data.TotalDuration = time.Duration(counters.TotalConnectionDuration * float64(time.Second)).Round(time.Second)
		if counters.LastConnectionTime != nil {
			data.LastConnection = nsmodel.FromEpoch(*counters.LastConnectionTime).Format(nsmodel.DateTimeLayout)
		}
		// Newest first.
		for i := len(counters.ConnectionHistory) - 1; i >= 0; i-- {
			data.History = append(data.History, counters.ConnectionHistory[i].Datetime)
		}
	}

	return data, nil
}
