package main

import (
	"github.com/spf13/cobra"

	"github.com/user/nsmon/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the terminal dashboard",
	Long: `Launch an interactive terminal dashboard showing live monitor status.

The dashboard refreshes every second and shows:
- SAFE / CONNECTED status and the last check time
- Connection counters for today and overall
- Recent connections

Press 'r' to refresh now, 'q' to quit. The daemon must be running for
the status to update.`,
	RunE: runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	app := tui.NewApp(cfg)
	return app.Run()
}
