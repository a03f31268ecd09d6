package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/util"
)

// Output formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// ReportsDir is the data directory subfolder reports are written to.
const ReportsDir = "reports"

// ParseFormat normalizes a user supplied format name.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", FormatMarkdown:
		return FormatMarkdown, nil
	case FormatJSON:
		return FormatJSON, nil
	case "yml", FormatYAML:
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown report format %q (use markdown, json or yaml)", s)
}

// Extension returns the file extension for a format.
func Extension(format string) string {
	switch format {
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	}
	return ".md"
}

// Render serializes the report in the given format.
func Render(data *ReportData, format string) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return []byte(FormatMarkdownReport(data)), nil
	case FormatJSON:
		return json.MarshalIndent(data, "", "  ")
	case FormatYAML:
		return yaml.Marshal(data)
	}
	return nil, fmt.Errorf("unknown report format %q", format)
}

// WriteFile renders the report into dataDir/reports and returns the path.
func WriteFile(data *ReportData, format, dataDir string) (string, error) {
	out, err := Render(data, format)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(dataDir, ReportsDir)
	if err := util.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	name := "nsmon-report-" + data.GeneratedAt.Format("20060102-150405") + Extension(format)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, out, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// FormatMarkdownReport renders the report as markdown with mermaid charts.
func FormatMarkdownReport(data *ReportData) string {
	var sb strings.Builder

	sb.WriteString("# NetSupport Monitor Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s  \n", data.GeneratedAt.Format(model.DateTimeLayout)))
	sb.WriteString(fmt.Sprintf("Period: %s to %s  \n", data.Since.Format(model.DateTimeLayout), data.Until.Format(model.DateTimeLayout)))
	sb.WriteString(fmt.Sprintf("Detection method: %s\n\n", data.Method))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Sessions | %d |\n", data.SessionCount))
	sb.WriteString(fmt.Sprintf("| Active sessions | %d |\n", data.ActiveCount))
	sb.WriteString(fmt.Sprintf("| Total connected time | %s |\n", formatSeconds(data.TotalSeconds)))
	sb.WriteString(fmt.Sprintf("| Longest session | %s |\n", formatSeconds(data.LongestSeconds)))
	sb.WriteString(fmt.Sprintf("| Average session | %s |\n", formatSeconds(data.AverageSeconds)))
	if data.Stats != nil {
		sb.WriteString(fmt.Sprintf("| Connections today | %d |\n", data.Stats.ConnectionsToday))
		sb.WriteString(fmt.Sprintf("| Connections (all time) | %d |\n", data.Stats.TotalConnections))
		if data.Stats.LastConnection != "" {
			sb.WriteString(fmt.Sprintf("| Last connection | %s |\n", data.Stats.LastConnection))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Timeline\n\n")
	sb.WriteString(GenerateSessionGantt(data))
	sb.WriteString("\n")

	if len(data.ByMethod) > 0 {
		sb.WriteString("## Sessions by Method\n\n")
		sb.WriteString("| Method | Sessions | Time |\n")
		sb.WriteString("|--------|----------|------|\n")
		for _, m := range data.ByMethod {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", m.Method, m.Sessions, formatSeconds(m.Seconds)))
		}
		sb.WriteString("\n")
		sb.WriteString(GenerateMethodPie(data))
		sb.WriteString("\n")
	}

	if len(data.ByDay) > 0 {
		sb.WriteString("## Daily Summary\n\n")
		sb.WriteString("| Date | Sessions | Time |\n")
		sb.WriteString("|------|----------|------|\n")
		for _, d := range data.ByDay {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", d.Date, d.Sessions, formatSeconds(d.Seconds)))
		}
		sb.WriteString("\n")
	}

	if len(data.Events) > 0 {
		sb.WriteString("## Events\n\n")
		sb.WriteString("| Type | Count |\n")
		sb.WriteString("|------|-------|\n")
		types := make([]string, 0, len(data.Events))
		for t := range data.Events {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", t, data.Events[t]))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Sessions\n\n")
	if len(data.Sessions) == 0 {
		sb.WriteString("No remote sessions recorded in this period.\n")
		return sb.String()
	}
	sb.WriteString("| Started | Ended | Duration | Method |\n")
	sb.WriteString("|---------|-------|----------|--------|\n")
	for _, s := range data.Sessions {
		ended := s.EndedAt.Format(model.DateTimeLayout)
		if s.Active {
			ended = "active"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			s.StartedAt.Format(model.DateTimeLayout), ended, formatSeconds(s.DurationSeconds), s.Method))
	}

	return sb.String()
}
