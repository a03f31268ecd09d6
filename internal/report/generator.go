// Package report generates remote session reports.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/storage"
	"github.com/user/nsmon/internal/util"
)

// Generator creates session reports from the history database.
type Generator struct {
	sessions *storage.SessionStorage
	events   *storage.EventStorage
	stats    *storage.StatsStore
	config   *util.Config
	now      func() time.Time
}

// NewGenerator creates a new report generator.
func NewGenerator(db *storage.DB, cfg *util.Config) *Generator {
	return &Generator{
		sessions: storage.NewSessionStorage(db),
		events:   storage.NewEventStorage(db),
		stats:    storage.NewStatsStore(cfg.StatsFile()),
		config:   cfg,
		now:      time.Now,
	}
}

// SetClock replaces the time source used for open sessions.
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

// ReportData holds all data for a report.
type ReportData struct {
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Since       time.Time `json:"since" yaml:"since"`
	Until       time.Time `json:"until" yaml:"until"`
	Method      string    `json:"detection_method" yaml:"detection_method"`

	SessionCount   int     `json:"session_count" yaml:"session_count"`
	ActiveCount    int     `json:"active_count" yaml:"active_count"`
	TotalSeconds   float64 `json:"total_seconds" yaml:"total_seconds"`
	LongestSeconds float64 `json:"longest_seconds" yaml:"longest_seconds"`
	AverageSeconds float64 `json:"average_seconds" yaml:"average_seconds"`

	ByMethod []MethodSummary `json:"by_method" yaml:"by_method"`
	ByDay    []DaySummary    `json:"by_day" yaml:"by_day"`
	Events   map[string]int  `json:"events" yaml:"events"`
	Stats    *StatsSummary   `json:"stats,omitempty" yaml:"stats,omitempty"`
	Sessions []SessionRow    `json:"sessions" yaml:"sessions"`

	// Oldest first, with open sessions extended to GeneratedAt.
	timeline []SessionRow
}

// SessionRow is one session as shown in a report.
type SessionRow struct {
	ID              string    `json:"id" yaml:"id"`
	Method          string    `json:"method" yaml:"method"`
	StartedAt       time.Time `json:"started_at" yaml:"started_at"`
	EndedAt         time.Time `json:"ended_at" yaml:"ended_at"`
	DurationSeconds float64   `json:"duration_seconds" yaml:"duration_seconds"`
	Active          bool      `json:"active" yaml:"active"`
}

// MethodSummary aggregates sessions per detection method.
type MethodSummary struct {
	Method   string  `json:"method" yaml:"method"`
	Sessions int     `json:"sessions" yaml:"sessions"`
	Seconds  float64 `json:"seconds" yaml:"seconds"`
}

// DaySummary aggregates sessions per calendar day.
type DaySummary struct {
	Date     string  `json:"date" yaml:"date"`
	Sessions int     `json:"sessions" yaml:"sessions"`
	Seconds  float64 `json:"seconds" yaml:"seconds"`
}

// StatsSummary mirrors the persisted counters.
type StatsSummary struct {
	TotalConnections int     `json:"total_connections" yaml:"total_connections"`
	ConnectionsToday int     `json:"connections_today" yaml:"connections_today"`
	TotalSeconds     float64 `json:"total_connection_duration" yaml:"total_connection_duration"`
	LastConnection   string  `json:"last_connection,omitempty" yaml:"last_connection,omitempty"`
	LastReset        string  `json:"last_reset" yaml:"last_reset"`
}

// Generate creates a report for the specified time range.
func (g *Generator) Generate(opts model.ReportOptions) (*ReportData, error) {
	now := g.now()
	until := opts.Until
	if until.IsZero() {
		until = now
	}

	data := &ReportData{
		GeneratedAt: now,
		Since:       opts.Since,
		Until:       until,
		Method:      g.config.DetectionMethod,
	}

	sessions, err := g.sessions.GetHistory(opts.Since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to get session history: %w", err)
	}
	summarize(data, sessions, now)

	counts, err := g.events.CountByType(opts.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	data.Events = counts

	rec, err := g.stats.Load()
	if err != nil {
		util.Warn("Failed to load stats for report: %v", err)
	} else if rec != nil {
		data.Stats = &StatsSummary{
			TotalConnections: rec.TotalConnections,
			ConnectionsToday: rec.ConnectionsToday,
			TotalSeconds:     rec.TotalConnectionDuration,
			LastReset:        rec.LastReset,
		}
		if rec.LastConnectionTime != nil {
			data.Stats.LastConnection = model.FromEpoch(*rec.LastConnectionTime).Format(model.DateTimeLayout)
		}
	}

	return data, nil
}

func summarize(data *ReportData, sessions []model.Session, now time.Time) {
	methods := make(map[string]*MethodSummary)
	days := make(map[string]*DaySummary)

	for _, s := range sessions {
		row := SessionRow{
			ID:              s.ID,
			Method:          s.Method,
			StartedAt:       s.StartedAt,
			DurationSeconds: s.DurationSeconds,
		}
		if s.Open() {
			row.Active = true
			row.EndedAt = now
			row.DurationSeconds = now.Sub(s.StartedAt).Seconds()
			if row.DurationSeconds < 0 {
				row.DurationSeconds = 0
			}
			data.ActiveCount++
		} else {
			row.EndedAt = *s.EndedAt
		}

		data.Sessions = append(data.Sessions, row)
		data.TotalSeconds += row.DurationSeconds
		if row.DurationSeconds > data.LongestSeconds {
			data.LongestSeconds = row.DurationSeconds
		}

		m, ok := methods[row.Method]
		if !ok {
			m = &MethodSummary{Method: row.Method}
			methods[row.Method] = m
		}
		m.Sessions++
		m.Seconds += row.DurationSeconds

		day := row.StartedAt.Format(model.DateLayout)
		d, ok := days[day]
		if !ok {
			d = &DaySummary{Date: day}
			days[day] = d
		}
		d.Sessions++
		d.Seconds += row.DurationSeconds
	}

	data.SessionCount = len(data.Sessions)
	if data.SessionCount > 0 {
		data.AverageSeconds = data.TotalSeconds / float64(data.SessionCount)
	}

	for _, m := range methods {
		data.ByMethod = append(data.ByMethod, *m)
	}
	sort.Slice(data.ByMethod, func(i, j int) bool {
		if data.ByMethod[i].Sessions != data.ByMethod[j].Sessions {
			return data.ByMethod[i].Sessions > data.ByMethod[j].Sessions
		}
		return data.ByMethod[i].Method < data.ByMethod[j].Method
	})

	for _, d := range days {
		data.ByDay = append(data.ByDay, *d)
	}
	sort.Slice(data.ByDay, func(i, j int) bool { return data.ByDay[i].Date < data.ByDay[j].Date })

	// Storage returns newest first.
	data.timeline = make([]SessionRow, len(data.Sessions))
	for i, row := range data.Sessions {
		data.timeline[len(data.Sessions)-1-i] = row
	}
}

// formatSeconds renders a duration rounded to whole seconds.
func formatSeconds(sec float64) string {
	return time.Duration(sec * float64(time.Second)).Round(time.Second).String()
}
