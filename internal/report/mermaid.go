package report

import (
	"fmt"
	"strings"
	"time"
)

// maxGanttSessions caps the timeline so large histories stay readable.
const maxGanttSessions = 50

const ganttTimeLayout = "2006-01-02 15:04:05"

// GenerateSessionGantt creates a Mermaid gantt chart of sessions, one
// section per detection method. Open sessions are drawn as active and end
// at the report time.
func GenerateSessionGantt(data *ReportData) string {
	rows := data.timeline
	if len(rows) > maxGanttSessions {
		rows = rows[len(rows)-maxGanttSessions:]
	}

	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	sb.WriteString("gantt\n")
	sb.WriteString("    title Remote Sessions\n")
	sb.WriteString("    dateFormat YYYY-MM-DD HH:mm:ss\n")
	sb.WriteString("    axisFormat %m-%d %H:%M\n")

	if len(rows) == 0 {
		sb.WriteString("    section none\n")
		sb.WriteString(fmt.Sprintf("    No sessions :milestone, m0, %s, 0s\n", data.Until.Format(ganttTimeLayout)))
		sb.WriteString("```\n")
		return sb.String()
	}

	// Group by method, keeping first-seen order.
	var order []string
	byMethod := make(map[string][]int)
	for i, row := range rows {
		if _, ok := byMethod[row.Method]; !ok {
			order = append(order, row.Method)
		}
		byMethod[row.Method] = append(byMethod[row.Method], i)
	}

	for _, method := range order {
		sb.WriteString(fmt.Sprintf("    section %s\n", method))
		for _, i := range byMethod[method] {
			row := rows[i]
			tag := "done"
			if row.Active {
				tag = "active"
			}
			end := row.EndedAt
			if !end.After(row.StartedAt) {
				end = row.StartedAt.Add(time.Second)
			}
			sb.WriteString(fmt.Sprintf("    Session %d %s :%s, s%d, %s, %s\n",
				i+1, row.StartedAt.Format("15.04"), tag, i+1,
				row.StartedAt.Format(ganttTimeLayout), end.Format(ganttTimeLayout)))
		}
	}

	sb.WriteString("```\n")
	return sb.String()
}

// GenerateMethodPie creates a Mermaid pie chart of sessions per method.
func GenerateMethodPie(data *ReportData) string {
	if len(data.ByMethod) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("pie title Sessions by Method\n")
	for _, m := range data.ByMethod {
		sb.WriteString(fmt.Sprintf("    %q : %d\n", m.Method, m.Sessions))
	}
	sb.WriteString("```\n")
	return sb.String()
}
