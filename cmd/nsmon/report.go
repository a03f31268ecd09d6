package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/report"
	"github.com/user/nsmon/internal/storage"
	"github.com/user/nsmon/internal/util"
)

var (
	reportLast   string
	reportFormat string
	reportOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a remote session report",
	Long: `Generate a report of remote control sessions.

Examples:
  nsmon report --last 24h
  nsmon report --last 7d --format markdown
  nsmon report --last 2w --format yaml --output -
  nsmon report --last 1h --output ./report.json --format json`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportLast, "last", "24h",
		"Time range (e.g., 1h, 24h, 7d, 2w)")
	reportCmd.Flags().StringVar(&reportFormat, "format", report.FormatMarkdown,
		"Output format (markdown, json, yaml)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "",
		"Output file path, or - for stdout (default: auto-generated in the data directory)")
}

func runReport(cmd *cobra.Command, args []string) error {
	// Parse time range
	duration, err := util.ParseDuration(reportLast)
	if err != nil {
		return fmt.Errorf("invalid time range: %w", err)
	}

	format, err := report.ParseFormat(reportFormat)
	if err != nil {
		return err
	}

	until := time.Now()
	since := until.Add(-duration)

	// Initialize database
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	gen := report.NewGenerator(db, cfg)
	data, err := gen.Generate(model.ReportOptions{
		Since:  since,
		Until:  until,
		Format: format,
	})
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	switch reportOutput {
	case "":
		outputPath, err := report.WriteFile(data, format, cfg.DataDir)
		if err != nil {
			return err
		}
		fmt.Printf("Report saved to: %s\n", outputPath)
	case "-":
		content, err := report.Render(data, format)
		if err != nil {
			return err
		}
		os.Stdout.Write(content)
		return nil
	default:
		content, err := report.Render(data, format)
		if err != nil {
			return err
		}
		if err := os.WriteFile(reportOutput, content, 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("Report saved to: %s\n", reportOutput)
	}

	// Print summary
	fmt.Println()
	fmt.Printf("Report for %s to %s\n", since.Format("2006-01-02 15:04"), until.Format("2006-01-02 15:04"))
	fmt.Printf("  Sessions: %d (%d active)\n", data.SessionCount, data.ActiveCount)
	fmt.Printf("  Connected time: %s\n", formatSeconds(data.TotalSeconds))
	fmt.Printf("  Longest session: %s\n", formatSeconds(data.LongestSeconds))

	return nil
}
