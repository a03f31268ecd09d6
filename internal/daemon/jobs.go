package daemon

import (
	"context"
	"time"

	"github.com/user/nsmon/internal/util"
)

// Job intervals.
const (
	PruneInterval  = time.Hour
	StatusInterval = 10 * time.Second
)

// registerJobs registers the background workers with the scheduler.
func (d *Daemon) registerJobs() {
	// Event log backstop flush
	d.scheduler.AddJob(&Job{
		Name:     "log_flush",
		Interval: time.Duration(util.DefaultFlushInterval) * time.Second,
		IntervalFunc: func() time.Duration {
			return d.configs.Current().FlushEvery()
		},
		Run: d.runLogFlush,
	})

	// History retention
	d.scheduler.AddJob(&Job{
		Name:     "history_prune",
		Interval: PruneInterval,
		Delay:    time.Minute,
		Run:      d.runHistoryPrune,
	})

	// Daemon status snapshot
	d.scheduler.AddJob(&Job{
		Name:     "daemon_status",
		Interval: StatusInterval,
		Delay:    time.Second,
		Run:      d.runStatusSnapshot,
	})
}

func (d *Daemon) runLogFlush(ctx context.Context) error {
	return d.buffer.Flush()
}

func (d *Daemon) runHistoryPrune(ctx context.Context) error {
	days := d.configs.Current().HistoryRetentionDays
	if days <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	removed, err := d.db.Prune(cutoff)
	if err != nil {
		return err
	}
	if removed > 0 {
		util.Info("Pruned %d history rows older than %d days", removed, days)
	}
	return nil
}

func (d *Daemon) runStatusSnapshot(ctx context.Context) error {
	return WriteStatusFile(d.configs.Current().DataDir, d.GetStatus())
}
