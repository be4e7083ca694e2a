// Package tui provides a terminal dashboard of recorded runs.
package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/netreport/internal/model"
	"github.com/user/netreport/internal/storage"
)

const (
	// recentRuns is how many runs the dashboard lists.
	recentRuns = 10
	// pathHistory is how many traces per target are compared for path changes.
	pathHistory = 10
)

// App is the main TUI application.
type App struct {
	db   *storage.DB
	host string
}

// NewApp creates a new TUI application. An empty host shows every host.
func NewApp(db *storage.DB, host string) *App {
	return &App{
		db:   db,
		host: host,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(newModel(a.db, a.host), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// appModel is the main bubbletea model.
type appModel struct {
	db        *storage.DB
	host      string
	dashboard *Dashboard
	spinner   spinner.Model
	ready     bool
	width     int
	height    int
	err       error
}

func newModel(db *storage.DB, host string) appModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(Primary)

	return appModel{
		db:      db,
		host:    host,
		spinner: s,
	}
}

// Init initializes the model.
func (m appModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		loadData(m.db, m.host),
	)
}

// Update handles messages.
func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, loadData(m.db, m.host)
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
		m.dashboard = NewDashboard(msg.Data, m.width, m.height)

	case errMsg:
		m.err = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI.
func (m appModel) View() string {
	if m.err != nil {
		return ErrorStyle.Render("Error: " + m.err.Error())
	}

	if !m.ready {
		return LoadingStyle.Render(m.spinner.View() + " Loading...")
	}

	return m.dashboard.View()
}

// Messages
type dataMsg struct {
	Data *DashboardData
}

type errMsg struct {
	err error
}

func loadData(db *storage.DB, host string) tea.Cmd {
	return func() tea.Msg {
		data, err := FetchDashboardData(db, host)
		if err != nil {
			return errMsg{err}
		}
		return dataMsg{Data: data}
	}
}

// FetchDashboardData collects everything the dashboard shows.
func FetchDashboardData(db *storage.DB, host string) (*DashboardData, error) {
	data := &DashboardData{Host: host}

	bwStorage := storage.NewBandwidthStorage(db)
	latest, err := bwStorage.GetLatest()
	if err != nil {
		return nil, err
	}
	if latest != nil {
		data.Latest = latest
	}

	if count, err := bwStorage.Count(); err == nil {
		data.SpeedTests = count
	}
	week, err := bwStorage.GetHistory(time.Now().Add(-7 * 24 * time.Hour))
	if err != nil {
		return nil, err
	}
	if len(week) > 0 {
		var sum int64
		for _, bw := range week {
			sum += bw.DownloadMbps
		}
		data.WeekAvgDownload = float64(sum) / float64(len(week))
	}

	paths, err := fetchPaths(storage.NewTraceStorage(db), host)
	if err != nil {
		return nil, err
	}
	data.Paths = paths

	runStorage := storage.NewRunStorage(db)
	if count, err := runStorage.Count(); err == nil {
		data.TotalRuns = count
	}
	if count, err := runStorage.CountSince(time.Now().Add(-24 * time.Hour)); err == nil {
		data.RunsToday = count
	}

	runs, err := runStorage.GetRecent(host, recentRuns)
	if err != nil {
		return nil, err
	}
	data.Runs = runs

	return data, nil
}

// fetchPaths summarizes the latest path and recent path stability of every
// traced target, or only host when set.
func fetchPaths(traces *storage.TraceStorage, host string) ([]PathSummary, error) {
	targets, err := traces.GetTargets()
	if err != nil {
		return nil, err
	}

	var paths []PathSummary
	for _, target := range targets {
		if host != "" && target != host {
			continue
		}

		latest, err := traces.GetLatest(target)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			continue
		}

		history, err := traces.GetHistory(target, pathHistory)
		if err != nil {
			return nil, err
		}

		distinct := make(map[string]bool)
		for _, trace := range history {
			distinct[pathKey(trace.Hops)] = true
		}

		paths = append(paths, PathSummary{
			Target:        target,
			Destination:   latest.Summary.Destination,
			Hops:          len(latest.Hops),
			AverageRTT:    latest.Summary.AverageRTT,
			Timestamp:     latest.Summary.Timestamp,
			Traces:        len(history),
			DistinctPaths: len(distinct),
		})
	}

	return paths, nil
}

func pathKey(hops []model.TracerouteHop) string {
	addrs := make([]string, 0, len(hops))
	for _, hop := range hops {
		addrs = append(addrs, hop.Address)
	}
	return strings.Join(addrs, ">")
}
