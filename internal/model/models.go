// Package model defines core data structures for nsmon.
package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Method identifies a detection strategy.
type Method string

// Detection methods.
const (
	MethodProcess  Method = "process"
	MethodPort     Method = "port"
	MethodRegistry Method = "registry"
	MethodHybrid   Method = "hybrid"
)

// Methods lists every supported detection method.
func Methods() []Method {
	return []Method{MethodProcess, MethodPort, MethodRegistry, MethodHybrid}
}

// ParseMethod converts a configuration string into a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MethodProcess, MethodPort, MethodRegistry, MethodHybrid:
		return m, nil
	default:
		return "", fmt.Errorf("unknown detection method %q", s)
	}
}

func (m Method) String() string {
	return string(m)
}

// Signals records which detection signals fired during a check.
type Signals struct {
	Processes []string `json:"processes,omitempty"`
	Port      bool     `json:"port"`
	Registry  bool     `json:"registry"`
}

// Any reports whether at least one signal fired.
func (s Signals) Any() bool {
	return len(s.Processes) > 0 || s.Port || s.Registry
}

// DetectionResult is produced once per monitor tick.
type DetectionResult struct {
	Connected bool          `json:"connected"`
	Method    Method        `json:"method_used"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Signals   Signals       `json:"signals"`
}

// StatusRecord is the persisted snapshot consumed by presentation layers.
// Times are epoch seconds; LastCheck is nil before the first check.
type StatusRecord struct {
	Connected  bool     `json:"connected"`
	LastCheck  *float64 `json:"last_check"`
	MethodUsed string   `json:"method_used"`
	Timestamp  float64  `json:"timestamp"`
}

// LastCheckTime returns LastCheck as a time, or the zero time when absent.
func (r StatusRecord) LastCheckTime() time.Time {
	if r.LastCheck == nil {
		return time.Time{}
	}
	return FromEpoch(*r.LastCheck)
}

// HistoryEntry is one connection start in the rolling history.
type HistoryEntry struct {
	Timestamp float64 `json:"timestamp"`
	Datetime  string  `json:"datetime"`
}

// MaxHistory bounds StatsRecord.ConnectionHistory.
const MaxHistory = 50

// StatsRecord holds persisted connection statistics.
type StatsRecord struct {
	TotalConnections        int            `json:"total_connections"`
	ConnectionsToday        int            `json:"connections_today"`
	LastConnectionTime      *float64       `json:"last_connection_time"`
	TotalConnectionDuration float64        `json:"total_connection_duration"`
	LastReset               string         `json:"last_reset"`
	ConnectionHistory       []HistoryEntry `json:"connection_history"`
}

// Session is one contiguous connected interval stored in the history database.
type Session struct {
	ID              string     `json:"id"`
	Method          string     `json:"method"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds float64    `json:"duration_seconds"`
}

// Open reports whether the session has not ended yet.
func (s Session) Open() bool {
	return s.EndedAt == nil
}

// Event types stored in the history database.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventNotification = "notification"
	EventConfig       = "config"
)

// Event represents a recorded monitor event.
type Event struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// ReportOptions defines options for report generation.
type ReportOptions struct {
	Since  time.Time `json:"since"`
	Until  time.Time `json:"until"`
	Format string    `json:"format"`
}

// Date and time layouts shared by the persisted files.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Epoch converts t to fractional epoch seconds.
func Epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromEpoch converts fractional epoch seconds to a local time, rounded to
// the microsecond.
func FromEpoch(sec float64) time.Time {
	return time.Unix(0, int64(math.Round(sec*1e6))*int64(time.Microsecond))
}
