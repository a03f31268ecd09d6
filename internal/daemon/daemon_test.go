package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/probes"
	"github.com/user/nsmon/internal/storage"
	"github.com/user/nsmon/internal/util"
)

func TestRunJobSuccessSchedulesNextRun(t *testing.T) {
	s := NewScheduler(context.Background())
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.Local)
	s.now = func() time.Time { return now }

	runs := 0
	job := &Job{
		Name:     "log_flush",
		Interval: 30 * time.Second,
		Run: func(ctx context.Context) error {
			runs++
			return nil
		},
	}
	s.AddJob(job)
	if !job.nextRun.Equal(now.Add(defaultJobDelay)) {
		t.Errorf("initial run should be delayed, next run %v", job.nextRun)
	}

	s.runJob(job)

	if runs != 1 {
		t.Fatalf("expected 1 run, got %d", runs)
	}
	if !job.nextRun.Equal(now.Add(30 * time.Second)) {
		t.Errorf("next run = %v", job.nextRun)
	}
}

func TestRunJobFailureRetriesSooner(t *testing.T) {
	s := NewScheduler(context.Background())
	now := time.Now()
	s.now = func() time.Time { return now }

	job := &Job{
		Name:     "history_prune",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			return errors.New("database is locked")
		},
	}
	s.AddJob(job)
	s.runJob(job)

	if !job.nextRun.Equal(now.Add(30 * time.Minute)) {
		t.Errorf("failed job should retry at half interval, next run %v", job.nextRun)
	}
	status := s.GetJobStatuses()[0]
	if status.ErrorCount != 1 || status.LastError != "database is locked" {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestRunJobRecoversPanic(t *testing.T) {
	s := NewScheduler(context.Background())
	job := &Job{
		Name:     "daemon_status",
		Interval: time.Second,
		Run: func(ctx context.Context) error {
			panic("boom")
		},
	}
	s.AddJob(job)
	s.runJob(job)

	status := s.GetJobStatuses()[0]
	if status.ErrorCount != 1 || status.Running {
		t.Errorf("panic should be recorded as a failure, got %+v", status)
	}
}

func TestIntervalFuncFollowsConfig(t *testing.T) {
	interval := 30 * time.Second
	job := &Job{
		Name:         "log_flush",
		Interval:     10 * time.Second,
		IntervalFunc: func() time.Duration { return interval },
	}
	if job.every() != 30*time.Second {
		t.Errorf("every = %v", job.every())
	}
	interval = 0
	if job.every() != 10*time.Second {
		t.Errorf("non-positive live interval should fall back, got %v", job.every())
	}
}

func TestSchedulerRunsDueJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(ctx)
	s.tick = 10 * time.Millisecond

	ran := make(chan struct{}, 1)
	s.AddJob(&Job{
		Name:     "log_flush",
		Interval: time.Minute,
		Delay:    time.Millisecond,
		Run: func(ctx context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	})

	go s.Run()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestTriggerJob(t *testing.T) {
	s := NewScheduler(context.Background())
	s.AddJob(&Job{Name: "history_prune", Interval: time.Hour, Run: func(ctx context.Context) error { return nil }})

	if !s.TriggerJob("history_prune") {
		t.Error("expected trigger to find job")
	}
	if s.TriggerJob("missing") {
		t.Error("unknown job should not trigger")
	}
}

func TestCheckRunning(t *testing.T) {
	dir := t.TempDir()
	if running, _ := CheckRunning(dir); running {
		t.Fatal("no PID file should mean not running")
	}

	pidFile := filepath.Join(dir, PIDFileName)
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	running, pid := CheckRunning(dir)
	if !running || pid != os.Getpid() {
		t.Errorf("expected own PID to be running, got %v %d", running, pid)
	}

	if err := os.WriteFile(pidFile, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if running, _ := CheckRunning(dir); running {
		t.Error("garbage PID file should mean not running")
	}
}

func TestStatusFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	status := &DaemonStatus{
		Running:   true,
		PID:       4242,
		StartTime: time.Date(2024, 5, 10, 9, 0, 0, 0, time.Local),
		Uptime:    90*time.Second + 300*time.Millisecond,
		Connected: true,
		Method:    "hybrid",
		Ticks:     12,
		Jobs:      []JobStatus{{Name: "log_flush", Interval: 30 * time.Second}},
	}

	if err := WriteStatusFile(dir, status); err != nil {
		t.Fatal(err)
	}
	sf, err := ReadStatusFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if sf.PID != 4242 || sf.Uptime != "1m30s" || sf.StartTime != "2024-05-10 09:00:00" {
		t.Errorf("unexpected status file %+v", sf)
	}
	if !sf.Connected || sf.Method != "hybrid" || sf.Ticks != 12 || len(sf.Jobs) != 1 {
		t.Errorf("unexpected monitor fields %+v", sf)
	}
}

func TestAutoStartCommand(t *testing.T) {
	got := AutoStartCommand(`C:\Program Files\nsmon\nsmon.exe`)
	want := `"C:\Program Files\nsmon\nsmon.exe" start`
	if got != want {
		t.Errorf("AutoStartCommand = %q, want %q", got, want)
	}
}

func TestAutoStartUnsupportedOffWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("writes to the registry on windows")
	}
	if err := SyncAutoStart(true); !errors.Is(err, ErrAutoStartUnsupported) {
		t.Errorf("expected ErrAutoStartUnsupported, got %v", err)
	}
}

type slowDetector struct {
	delay   time.Duration
	started chan struct{}
	once    sync.Once
}

func (s *slowDetector) Detect(ctx context.Context, plan probes.Plan) model.DetectionResult {
	s.once.Do(func() { close(s.started) })
	time.Sleep(s.delay)
	return model.DetectionResult{Connected: true, Method: plan.Method(), Signals: model.Signals{Port: true}}
}

func TestStopFlushesCheckInFlight(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, util.ConfigFileName), []byte(`{"log_buffer_size": 50}`), 0644); err != nil {
		t.Fatal(err)
	}
	configs := util.NewConfigStore(dir, "")
	cfg, _, err := configs.Load()
	if err != nil {
		t.Fatal(err)
	}

	db, err := storage.Open(filepath.Join(dir, storage.DatabaseFileName))
	if err != nil {
		t.Fatal(err)
	}

	detector := &slowDetector{delay: 300 * time.Millisecond, started: make(chan struct{})}
	d := newDaemon(configs, db, detector)
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-detector.started:
	case <-time.After(2 * time.Second):
		t.Fatal("check never started")
	}
	time.Sleep(50 * time.Millisecond)

	if err := d.Stop(); err != nil {
		t.Fatal(err)
	}

	if n := d.buffer.Len(); n != 0 {
		t.Errorf("%d entries left in the buffer after Stop", n)
	}
	data, err := os.ReadFile(cfg.EventLogFile())
	if err != nil {
		t.Fatalf("event log not written: %v", err)
	}
	if !strings.Contains(string(data), "CONNECTED - remote session detected") {
		t.Errorf("transition line missing from event log:\n%s", data)
	}
	if util.FileExists(filepath.Join(dir, PIDFileName)) {
		t.Error("PID file should be removed")
	}
}
