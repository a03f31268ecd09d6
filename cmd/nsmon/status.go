package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/nsmon/internal/daemon"
	"github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/monitor"
	"github.com/user/nsmon/internal/storage"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	safeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  "Show the nsmon daemon state, the last detection result and connection statistics.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	// Check daemon status
	running, pid := daemon.CheckRunning(cfg.DataDir)

	fmt.Println(titleStyle.Render("nsmon Status"))

	// Daemon status
	fmt.Print(labelStyle.Render("Daemon: "))
	if running {
		fmt.Println(safeStyle.Render(fmt.Sprintf("Running (PID %d)", pid)))
	} else {
		fmt.Println(alertStyle.Render("Stopped"))
	}

	var sf *daemon.StatusFile
	if running {
		if s, err := daemon.ReadStatusFile(cfg.DataDir); err == nil {
			sf = s
			fmt.Print(labelStyle.Render("Started: "))
			fmt.Println(valueStyle.Render(sf.StartTime))

			fmt.Print(labelStyle.Render("Uptime: "))
			fmt.Println(valueStyle.Render(sf.Uptime))

			fmt.Print(labelStyle.Render("Checks: "))
			fmt.Println(valueStyle.Render(fmt.Sprintf("%d", sf.Ticks)))
		}
	}

	// Last detection result
	fmt.Println()
	fmt.Println(titleStyle.Render("Detection"))
	rec, err := storage.NewStatusStore(cfg.StatusFile()).Load()
	if err != nil {
		fmt.Printf("  %s %s\n", labelStyle.Render("Error:"), alertStyle.Render(err.Error()))
	} else if rec == nil {
		fmt.Printf("  %s\n", labelStyle.Render("No check recorded yet"))
	} else {
		verdict := safeStyle.Render("SAFE")
		if rec.Connected {
			verdict = alertStyle.Render("CONNECTED")
		}
		fmt.Printf("  %s %s\n", labelStyle.Render("Status:"), verdict)

		if rec.LastCheck != nil {
			last := rec.LastCheckTime()
			check := last.Format(model.DateTimeLayout)
			if time.Since(last) > monitor.StaleAfter {
				check += " (stale)"
			}
			fmt.Printf("  %s %s\n", labelStyle.Render("Last check:"), valueStyle.Render(check))
		}
		fmt.Printf("  %s %s\n", labelStyle.Render("Method used:"), valueStyle.Render(rec.MethodUsed))
	}
	fmt.Printf("  %s %s\n", labelStyle.Render("Configured:"),
		valueStyle.Render(fmt.Sprintf("%s every %ds", cfg.DetectionMethod, cfg.ScanInterval)))

	// Counters
	if counters, err := storage.NewStatsStore(cfg.StatsFile()).Load(); err == nil && counters != nil {
		fmt.Println()
		fmt.Println(titleStyle.Render("Statistics"))
		fmt.Printf("  %s %s\n", labelStyle.Render("Connections today:"),
			valueStyle.Render(fmt.Sprintf("%d", counters.ConnectionsToday)))
		fmt.Printf("  %s %s\n", labelStyle.Render("Total connections:"),
			valueStyle.Render(fmt.Sprintf("%d", counters.TotalConnections)))
		fmt.Printf("  %s %s\n", labelStyle.Render("Connected for:"),
			valueStyle.Render(formatSeconds(counters.TotalConnectionDuration)))
		if counters.LastConnectionTime != nil {
			fmt.Printf("  %s %s\n", labelStyle.Render("Last connection:"),
				valueStyle.Render(model.FromEpoch(*counters.LastConnectionTime).Format(model.DateTimeLayout)))
		}
	}

	// Current session from history
	if db, err := storage.Initialize(cfg.DataDir); err == nil {
		if current, err := storage.NewSessionStorage(db).GetCurrent(); err == nil && current != nil {
			fmt.Println()
			fmt.Println(titleStyle.Render("Active Session"))
			fmt.Printf("  %s %s\n", labelStyle.Render("Started:"),
				alertStyle.Render(current.StartedAt.Format(model.DateTimeLayout)))
			fmt.Printf("  %s %s\n", labelStyle.Render("Duration:"),
				valueStyle.Render(formatSeconds(time.Since(current.StartedAt).Seconds())))
			fmt.Printf("  %s %s\n", labelStyle.Render("Method:"), valueStyle.Render(current.Method))
		}
	}

	if sf != nil && len(sf.Jobs) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("Jobs"))

		for _, job := range sf.Jobs {
			statusStr := "idle"
			if job.Running {
				statusStr = "running"
			}
			fmt.Printf("  %s: %s (last: %s, errors: %d)\n",
				labelStyle.Render(job.Name),
				valueStyle.Render(statusStr),
				job.LastRun.Format("15:04:05"),
				job.ErrorCount)
		}
	}

	return nil
}

func formatSeconds(sec float64) string {
	return time.Duration(sec * float64(time.Second)).Round(time.Second).String()
}
