package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/nsmon/internal/monitor"
	"github.com/user/nsmon/internal/storage"
	"github.com/user/nsmon/internal/util"
	"github.com/user/nsmon/internal/web"
)

var webPort int

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Start the web dashboard",
	Long: `Start a lightweight web dashboard for the monitor.

The web server provides:
- Current SAFE / CONNECTED status and connection counters
- Recent sessions with a timeline chart
- JSON API under /api (status, stats, sessions, events)
- Downloadable reports at /report

Examples:
  nsmon web
  nsmon web --port 8080`,
	RunE: runWeb,
}

func init() {
	webCmd.Flags().IntVarP(&webPort, "port", "p", 0, "Web server port (default from config)")
}

func runWeb(cmd *cobra.Command, args []string) error {
	if webPort == 0 {
		webPort = cfg.WebPort
	}

	// Initialize database
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Starting web server on http://localhost:%d\n", webPort)
	fmt.Println("Press Ctrl+C to stop")

	go reloadConfig(ctx, configs, monitor.ReloadEvery)

	srv := web.NewServer(db, configs, webPort)
	return srv.Start(ctx)
}

// reloadConfig re-reads the config file until ctx is done. The daemon
// reloads its own store, so this only runs for the standalone dashboard.
func reloadConfig(ctx context.Context, store *util.ConfigStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _, warnings := store.Reload()
			for _, w := range warnings {
				util.Debug("Config: %s", w)
			}
		}
	}
}
