// Package daemon provides background service functionality.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/user/nsmon/internal/eventlog"
	"github.com/user/nsmon/internal/monitor"
	"github.com/user/nsmon/internal/probes"
	"github.com/user/nsmon/internal/stats"
	"github.com/user/nsmon/internal/storage"
	"github.com/user/nsmon/internal/util"
)

// PIDFileName is the daemon PID file inside the data directory.
const PIDFileName = "nsmon.pid"

// ShutdownTimeout bounds how long Stop waits for workers. Workers still
// running afterwards are abandoned.
const ShutdownTimeout = 5 * time.Second

// Daemon manages the background service.
type Daemon struct {
	configs   *util.ConfigStore
	scheduler *Scheduler
	db        *storage.DB
	loop      *monitor.Loop
	buffer    *eventlog.Buffer
	tracker   *stats.Tracker
	pidFile   string
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopped   chan struct{}
	running   bool
	startTime time.Time
	mu        sync.RWMutex
}

// New creates a new daemon instance around a loaded config store.
func New(configs *util.ConfigStore) (*Daemon, error) {
	cfg := configs.Current()

	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return newDaemon(configs, db, probes.NewEngine(nil, nil, nil)), nil
}

func newDaemon(configs *util.ConfigStore, db *storage.DB, detector monitor.Detector) *Daemon {
	cfg := configs.Current()
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		configs: configs,
		db:      db,
		pidFile: filepath.Join(cfg.DataDir, PIDFileName),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}

	d.tracker = stats.NewTracker(storage.NewStatsStore(cfg.StatsFile()))
	// A failed load is logged by the tracker and retried on each tick.
	_ = d.tracker.Load()

	d.buffer = eventlog.NewBuffer(eventlog.FileWriter{Path: cfg.EventLogFile()}, eventlog.PolicyFor(cfg))

	d.loop = monitor.New(monitor.Options{
		Config:   configs,
		Engine:   detector,
		Tracker:  d.tracker,
		Buffer:   d.buffer,
		Status:   storage.NewStatusStore(cfg.StatusFile()),
		Sessions: storage.NewSessionStorage(db),
		Events:   storage.NewEventStorage(db),
		Notifier: monitor.NewLogNotifier(),
	})

	d.scheduler = NewScheduler(ctx)

	return d
}

// Start starts the daemon.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	// Write PID file
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	util.Info("Daemon starting...")

	// Sessions left open by an unclean shutdown
	if n, err := storage.NewSessionStorage(d.db).CloseOpen(time.Now()); err != nil {
		util.Warn("Failed to close stale sessions: %v", err)
	} else if n > 0 {
		util.Info("Closed %d stale session(s)", n)
	}

	// Register jobs
	d.registerJobs()

	// Start monitor loop
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop.Run(d.ctx)
	}()

	// Start scheduler
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.scheduler.Run()
	}()

	// Handle signals
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.handleSignals()
	}()

	util.Info("Daemon started with PID %d", os.Getpid())

	return nil
}

// Wait blocks until Stop has finished.
func (d *Daemon) Wait() {
	<-d.stopped
}

// Stop stops the daemon gracefully: workers are cancelled, buffered
// events are flushed, and workers get ShutdownTimeout to exit. Entries
// appended by a check still in flight are flushed once workers exit.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	util.Info("Daemon stopping...")

	d.cancel() // Signal all goroutines to stop

	if err := d.buffer.Flush(); err != nil {
		util.Warn("Final event log flush failed: %v", err)
	}

	// Wait for graceful shutdown with timeout
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.loop.Close()
		if err := d.buffer.Flush(); err != nil {
			util.Warn("Final event log flush failed: %v", err)
		}
		util.Info("Daemon stopped gracefully")
	case <-time.After(ShutdownTimeout):
		util.Warn("Daemon stop timed out, abandoning workers")
	}

	// Clean up
	d.removePIDFile()
	if d.db != nil {
		d.db.Close()
	}
	close(d.stopped)

	return nil
}

func (d *Daemon) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		util.Info("Received signal: %v", sig)
		// Stop waits on this goroutine, so it cannot run inline.
		go d.Stop()
	case <-d.ctx.Done():
		return
	}
}

func (d *Daemon) writePIDFile() error {
	pid := os.Getpid()
	return os.WriteFile(d.pidFile, []byte(strconv.Itoa(pid)), 0644)
}

func (d *Daemon) removePIDFile() {
	os.Remove(d.pidFile)
}

// IsRunning returns whether the daemon is running.
func (d *Daemon) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// GetStatus returns the daemon status.
func (d *Daemon) GetStatus() *DaemonStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	state := d.loop.State()
	return &DaemonStatus{
		Running:   d.running,
		PID:       os.Getpid(),
		StartTime: d.startTime,
		Uptime:    time.Since(d.startTime),
		Connected: state.Connected,
		Method:    state.Method.String(),
		Ticks:     state.Ticks,
		Jobs:      d.scheduler.GetJobStatuses(),
	}
}

// DaemonStatus holds the current daemon status.
type DaemonStatus struct {
	Running   bool
	PID       int
	StartTime time.Time
	Uptime    time.Duration
	Connected bool
	Method    string
	Ticks     uint64
	Jobs      []JobStatus
}

// GetDB returns the database instance.
func (d *Daemon) GetDB() *storage.DB {
	return d.db
}

// GetConfigStore returns the live config store reloaded by the monitor.
func (d *Daemon) GetConfigStore() *util.ConfigStore {
	return d.configs
}

// GetContext returns the daemon context.
func (d *Daemon) GetContext() context.Context {
	return d.ctx
}
