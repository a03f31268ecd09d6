package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/user/nsmon/internal/daemon"
	"github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/monitor"
	"github.com/user/nsmon/internal/report"
	"github.com/user/nsmon/internal/stats"
	"github.com/user/nsmon/internal/storage"
	"github.com/user/nsmon/internal/util"
)

const (
	defaultWindow = 24 * time.Hour
	defaultLimit  = 20
	maxLimit      = 200
)

// ConfigSource provides the live configuration snapshot.
// *util.ConfigStore satisfies it.
type ConfigSource interface {
	Current() *util.Config
}

// Handlers contains HTTP handlers.
type Handlers struct {
	db       *storage.DB
	configs  ConfigSource
	status   *storage.StatusStore
	stats    *storage.StatsStore
	sessions *storage.SessionStorage
	events   *storage.EventStorage
	now      func() time.Time
}

// NewHandlers creates new handlers. Settings are read from configs on
// every request.
func NewHandlers(db *storage.DB, configs ConfigSource) *Handlers {
	cfg := configs.Current()
	return &Handlers{
		db:       db,
		configs:  configs,
		status:   storage.NewStatusStore(cfg.StatusFile()),
		stats:    storage.NewStatsStore(cfg.StatsFile()),
		sessions: storage.NewSessionStorage(db),
		events:   storage.NewEventStorage(db),
		now:      time.Now,
	}
}

// StatusResponse is the payload of /api/status.
type StatusResponse struct {
	Running         bool    `json:"running"`
	PID             int     `json:"pid"`
	Uptime          string  `json:"uptime,omitempty"`
	Connected       bool    `json:"connected"`
	LastCheck       *string `json:"last_check"`
	MethodUsed      string  `json:"method_used"`
	Stale           bool    `json:"stale"`
	DetectionMethod string  `json:"detection_method"`
	ScanInterval    int     `json:"scan_interval"`
}

// Dashboard serves the main dashboard page.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := h.getDashboardData()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := getDashboardTemplate().Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// APIGetStatus returns the last detection status and daemon state.
func (h *Handlers) APIGetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.currentStatus()
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, status)
}

// APIGetStats returns the connection counters.
func (h *Handlers) APIGetStats(w http.ResponseWriter, r *http.Request) {
	rec, err := h.stats.Load()
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	if rec == nil {
		rec = stats.NewRecord(h.now())
	}
	writeJSON(w, rec)
}

// APIGetSessions returns recent sessions, or sessions within ?since=.
func (h *Handlers) APIGetSessions(w http.ResponseWriter, r *http.Request) {
	var sessions []model.Session
	var err error

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		d, perr := util.ParseDuration(sinceStr)
		if perr != nil {
			writeError(w, perr, http.StatusBadRequest)
			return
		}
		now := h.now()
		sessions, err = h.sessions.GetHistory(now.Add(-d), now.Add(time.Second))
	} else {
		sessions, err = h.sessions.GetRecent(parseLimit(r))
	}
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []model.Session{}
	}

	writeJSON(w, sessions)
}

// APIGetEvents returns events within ?since= (default 24h), optionally
// filtered by ?type=.
func (h *Handlers) APIGetEvents(w http.ResponseWriter, r *http.Request) {
	window := defaultWindow
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		d, err := util.ParseDuration(sinceStr)
		if err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}
		window = d
	}

	events, err := h.events.GetSince(h.now().Add(-window), 0)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	eventType := r.URL.Query().Get("type")
	limit := parseLimit(r)
	result := make([]model.Event, 0, limit)
	for _, e := range events {
		if eventType != "" && e.Type != eventType {
			continue
		}
		result = append(result, e)
		if len(result) == limit {
			break
		}
	}

	writeJSON(w, result)
}

// DownloadReport generates and downloads a report. Query parameters:
// last (default 24h) and format (markdown, json or yaml).
func (h *Handlers) DownloadReport(w http.ResponseWriter, r *http.Request) {
	window := defaultWindow
	if last := r.URL.Query().Get("last"); last != "" {
		d, err := util.ParseDuration(last)
		if err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}
		window = d
	}

	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	now := h.now()
	gen := report.NewGenerator(h.db, h.configs.Current())
	gen.SetClock(h.now)

	data, err := gen.Generate(model.ReportOptions{
		Since:  now.Add(-window),
		Until:  now.Add(time.Second),
		Format: format,
	})
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	content, err := report.Render(data, format)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("Content-Disposition", "attachment; filename=nsmon_report"+report.Extension(format))
	w.Write(content)
}

func (h *Handlers) currentStatus() (*StatusResponse, error) {
	rec, err := h.status.Load()
	if err != nil {
		return nil, err
	}

	cfg := h.configs.Current()
	status := &StatusResponse{
		DetectionMethod: cfg.DetectionMethod,
		ScanInterval:    cfg.ScanInterval,
		Stale:           true,
	}

	running, pid := daemon.CheckRunning(cfg.DataDir)
	status.Running = running
	status.PID = pid
	if running {
		if sf, err := daemon.ReadStatusFile(cfg.DataDir); err == nil {
			status.Uptime = sf.Uptime
		}
	}

	if rec != nil {
		status.Connected = rec.Connected
		status.MethodUsed = rec.MethodUsed
		if rec.LastCheck != nil {
			last := rec.LastCheckTime()
			formatted := last.Format(model.DateTimeLayout)
			status.LastCheck = &formatted
			status.Stale = h.now().Sub(last) > monitor.StaleAfter
		}
	}

	return status, nil
}

func (h *Handlers) getDashboardData() map[string]interface{} {
	data := make(map[string]interface{})
	cfg := h.configs.Current()

	if status, err := h.currentStatus(); err == nil {
		data["status"] = status
	} else {
		util.Warn("Dashboard status: %v", err)
		data["status"] = &StatusResponse{Stale: true, DetectionMethod: cfg.DetectionMethod}
	}

	if rec, err := h.stats.Load(); err == nil && rec != nil {
		data["stats"] = rec
		data["total_duration"] = formatSeconds(rec.TotalConnectionDuration)
	}

	if sessions, err := h.sessions.GetRecent(10); err == nil {
		data["sessions"] = sessionRows(sessions, h.now())
	}

	if events, err := h.events.GetSince(h.now().Add(-defaultWindow), 10); err == nil {
		data["events"] = events
	}

	since := h.now().Add(-defaultWindow)
	gen := report.NewGenerator(h.db, cfg)
	gen.SetClock(h.now)
	if rep, err := gen.Generate(model.ReportOptions{Since: since, Until: h.now().Add(time.Second)}); err == nil && rep.SessionCount > 0 {
		data["gantt"] = stripFence(report.GenerateSessionGantt(rep))
	}

	data["refresh"] = cfg.ScanInterval * 2
	data["generated_at"] = h.now().Format(model.DateTimeLayout)

	return data
}

type sessionRow struct {
	Started  string
	Ended    string
	Duration string
	Method   string
	Active   bool
}

func sessionRows(sessions []model.Session, now time.Time) []sessionRow {
	rows := make([]sessionRow, 0, len(sessions))
	for _, s := range sessions {
		row := sessionRow{
			Started:  s.StartedAt.Format(model.DateTimeLayout),
			Method:   s.Method,
			Duration: formatSeconds(s.DurationSeconds),
		}
		if s.Open() {
			row.Active = true
			row.Ended = "active"
			row.Duration = formatSeconds(now.Sub(s.StartedAt).Seconds())
		} else {
			row.Ended = s.EndedAt.Format(model.DateTimeLayout)
		}
		rows = append(rows, row)
	}
	return rows
}

func parseLimit(r *http.Request) int {
	limit := defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if ln, err := strconv.Atoi(l); err == nil && ln > 0 && ln <= maxLimit {
			limit = ln
		}
	}
	return limit
}

func contentType(format string) string {
	switch format {
	case report.FormatJSON:
		return "application/json"
	case report.FormatYAML:
		return "application/yaml"
	}
	return "text/markdown; charset=utf-8"
}

func formatSeconds(sec float64) string {
	return time.Duration(sec * float64(time.Second)).Round(time.Second).String()
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
