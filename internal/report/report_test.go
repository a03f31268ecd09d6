package report

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/storage"
	"github.com/user/nsmon/internal/util"
)

var day = time.Date(2024, 5, 10, 0, 0, 0, 0, time.Local)

func at(h, m, s int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

// newFixture stores two closed sessions and one still open at 11:02.
func newFixture(t *testing.T) (*Generator, *util.Config) {
	t.Helper()

	cfg := util.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.DetectionMethod = "hybrid"

	db, err := storage.Open(filepath.Join(cfg.DataDir, storage.DatabaseFileName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sessions := storage.NewSessionStorage(db)
	first, err := sessions.Start(model.MethodHybrid, at(9, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sessions.End(first.ID, at(9, 1, 15)); err != nil {
		t.Fatal(err)
	}
	second, err := sessions.Start(model.MethodProcess, at(10, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sessions.End(second.ID, at(10, 0, 30)); err != nil {
		t.Fatal(err)
	}
	if _, err := sessions.Start(model.MethodHybrid, at(11, 0, 0)); err != nil {
		t.Fatal(err)
	}

	events := storage.NewEventStorage(db)
	for _, e := range []struct {
		typ string
		at  time.Time
	}{
		{model.EventConnected, at(9, 0, 0)},
		{model.EventDisconnected, at(9, 1, 15)},
		{model.EventConnected, at(11, 0, 0)},
	} {
		if err := events.Record(e.typ, "test", e.at); err != nil {
			t.Fatal(err)
		}
	}

	last := model.Epoch(at(11, 0, 0))
	stats := storage.NewStatsStore(cfg.StatsFile())
	if err := stats.Save(&model.StatsRecord{
		TotalConnections:   7,
		ConnectionsToday:   2,
		LastConnectionTime: &last,
		LastReset:          "2024-05-10",
	}); err != nil {
		t.Fatal(err)
	}

	g := NewGenerator(db, cfg)
	g.SetClock(func() time.Time { return at(11, 2, 0) })
	return g, cfg
}

func generate(t *testing.T, g *Generator) *ReportData {
	t.Helper()
	data, err := g.Generate(model.ReportOptions{Since: day})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return data
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-3 }

func TestGenerateAggregates(t *testing.T) {
	g, _ := newFixture(t)
	data := generate(t, g)

	if data.SessionCount != 3 || data.ActiveCount != 1 {
		t.Fatalf("sessions = %d active = %d", data.SessionCount, data.ActiveCount)
	}
	if !near(data.TotalSeconds, 225) || !near(data.LongestSeconds, 120) || !near(data.AverageSeconds, 75) {
		t.Errorf("total %.1f longest %.1f average %.1f", data.TotalSeconds, data.LongestSeconds, data.AverageSeconds)
	}
	if !data.Until.Equal(at(11, 2, 0)) {
		t.Errorf("zero until should default to now, got %v", data.Until)
	}

	if len(data.ByMethod) != 2 || data.ByMethod[0].Method != "hybrid" || data.ByMethod[0].Sessions != 2 {
		t.Errorf("by method = %+v", data.ByMethod)
	}
	if !near(data.ByMethod[0].Seconds, 195) {
		t.Errorf("hybrid seconds = %.1f", data.ByMethod[0].Seconds)
	}
	if len(data.ByDay) != 1 || data.ByDay[0].Date != "2024-05-10" || data.ByDay[0].Sessions != 3 {
		t.Errorf("by day = %+v", data.ByDay)
	}

	if data.Events[model.EventConnected] != 2 || data.Events[model.EventDisconnected] != 1 {
		t.Errorf("events = %v", data.Events)
	}
	if data.Stats == nil || data.Stats.TotalConnections != 7 || data.Stats.LastConnection != "2024-05-10 11:00:00" {
		t.Errorf("stats = %+v", data.Stats)
	}

	// Newest first in the table, oldest first on the timeline.
	if !data.Sessions[0].Active || data.Sessions[2].Method != "hybrid" {
		t.Errorf("unexpected session order %+v", data.Sessions)
	}
	if !data.timeline[0].StartedAt.Equal(at(9, 0, 0)) {
		t.Errorf("timeline should start with the oldest session, got %v", data.timeline[0].StartedAt)
	}
}

func TestGenerateWindowExcludesLaterSessions(t *testing.T) {
	g, _ := newFixture(t)
	data, err := g.Generate(model.ReportOptions{Since: day, Until: at(9, 30, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if data.SessionCount != 1 || data.ActiveCount != 0 {
		t.Errorf("expected only the first session, got %+v", data.Sessions)
	}
}

func TestSessionGantt(t *testing.T) {
	g, _ := newFixture(t)
	chart := GenerateSessionGantt(generate(t, g))

	for _, want := range []string{
		"gantt",
		"dateFormat YYYY-MM-DD HH:mm:ss",
		"section hybrid",
		"section process",
		":done, s1, 2024-05-10 09:00:00, 2024-05-10 09:01:15",
		":active, s3, 2024-05-10 11:00:00, 2024-05-10 11:02:00",
	} {
		if !strings.Contains(chart, want) {
			t.Errorf("gantt missing %q:\n%s", want, chart)
		}
	}
	if strings.Index(chart, "section hybrid") > strings.Index(chart, "section process") {
		t.Error("sections should follow first appearance")
	}
}

func TestSessionGanttEmpty(t *testing.T) {
	data := &ReportData{Until: at(12, 0, 0)}
	chart := GenerateSessionGantt(data)
	if !strings.Contains(chart, "No sessions :milestone") {
		t.Errorf("empty chart should carry a milestone:\n%s", chart)
	}
	if GenerateMethodPie(data) != "" {
		t.Error("pie chart should be omitted without sessions")
	}
}

func TestMarkdownReport(t *testing.T) {
	g, _ := newFixture(t)
	md := FormatMarkdownReport(generate(t, g))

	for _, want := range []string{
		"# NetSupport Monitor Report",
		"| Sessions | 3 |",
		"| Total connected time | 3m45s |",
		"| Connections (all time) | 7 |",
		"pie title Sessions by Method",
		"| 2024-05-10 | 3 | 3m45s |",
		"| connected | 2 |",
		"| 2024-05-10 11:00:00 | active | 2m0s | hybrid |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderJSONAndYAML(t *testing.T) {
	g, _ := newFixture(t)
	data := generate(t, g)

	out, err := Render(data, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["session_count"].(float64) != 3 || decoded["detection_method"] != "hybrid" {
		t.Errorf("unexpected json %v", decoded)
	}

	out, err = Render(data, FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		SessionCount int `yaml:"session_count"`
		Sessions     []struct {
			Method string `yaml:"method"`
			Active bool   `yaml:"active"`
		} `yaml:"sessions"`
	}
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.SessionCount != 3 || len(doc.Sessions) != 3 || !doc.Sessions[0].Active {
		t.Errorf("unexpected yaml %+v", doc)
	}

	if _, err := Render(data, "pdf"); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteFile(t *testing.T) {
	g, cfg := newFixture(t)
	data := generate(t, g)

	path, err := WriteFile(data, FormatYAML, cfg.DataDir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "nsmon-report-20240510-110200.yaml" {
		t.Errorf("unexpected file name %s", path)
	}
	if filepath.Dir(path) != filepath.Join(cfg.DataDir, ReportsDir) {
		t.Errorf("unexpected directory %s", path)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("report not written: %v", err)
	}
}
