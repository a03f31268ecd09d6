package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/user/nsmon/internal/util"
)

// Job represents a scheduled job. When IntervalFunc is set it is read
// before every run, so jobs can follow live configuration.
type Job struct {
	Name         string
	Interval     time.Duration
	IntervalFunc func() time.Duration
	Delay        time.Duration
	Run          func(ctx context.Context) error

	// State
	lastRun    time.Time
	nextRun    time.Time
	lastError  error
	errorCount int
	running    bool
	mu         sync.RWMutex
}

// JobStatus represents the status of a job.
type JobStatus struct {
	Name       string        `json:"name"`
	Interval   time.Duration `json:"interval"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	LastError  string        `json:"last_error,omitempty"`
	ErrorCount int           `json:"error_count"`
	Running    bool          `json:"running"`
}

// every returns the job's current interval.
func (j *Job) every() time.Duration {
	if j.IntervalFunc != nil {
		if d := j.IntervalFunc(); d > 0 {
			return d
		}
	}
	return j.Interval
}

// defaultJobDelay is the initial delay for jobs without one.
const defaultJobDelay = 5 * time.Second

// Scheduler manages scheduled jobs.
type Scheduler struct {
	ctx  context.Context
	jobs []*Job
	mu   sync.RWMutex
	tick time.Duration
	now  func() time.Time
}

// NewScheduler creates a new scheduler.
func NewScheduler(ctx context.Context) *Scheduler {
	return &Scheduler{
		ctx:  ctx,
		jobs: make([]*Job, 0),
		tick: time.Second,
		now:  time.Now,
	}
}

// AddJob adds a job to the scheduler.
func (s *Scheduler) AddJob(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delay := job.Delay
	if delay <= 0 {
		delay = defaultJobDelay
	}
	job.nextRun = s.now().Add(delay)
	s.jobs = append(s.jobs, job)
}

// Run starts the scheduler.
func (s *Scheduler) Run() {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	util.Info("Scheduler started with %d jobs", len(s.jobs))

	for {
		select {
		case <-s.ctx.Done():
			util.Info("Scheduler stopping")
			return
		case now := <-ticker.C:
			s.checkJobs(now)
		}
	}
}

func (s *Scheduler) checkJobs(now time.Time) {
	s.mu.RLock()
	jobs := s.jobs
	s.mu.RUnlock()

	for _, job := range jobs {
		job.mu.RLock()
		shouldRun := !job.running && now.After(job.nextRun)
		job.mu.RUnlock()

		if shouldRun {
			go s.runJob(job)
		}
	}
}

func (s *Scheduler) runJob(job *Job) {
	job.mu.Lock()
	if job.running {
		job.mu.Unlock()
		return
	}
	job.running = true
	job.lastRun = s.now()
	job.mu.Unlock()

	util.Debug("Running job: %s", job.Name)

	interval := job.every()

	// Create job context with timeout
	ctx, cancel := context.WithTimeout(s.ctx, interval)
	defer cancel()

	err := runSafely(ctx, job)

	job.mu.Lock()
	job.running = false
	if err != nil {
		job.lastError = err
		job.errorCount++
		util.Warn("Job %s failed: %v", job.Name, err)
		// Shorter retry on error
		job.nextRun = s.now().Add(interval / 2)
	} else {
		job.lastError = nil
		util.Debug("Job %s completed successfully", job.Name)
		job.nextRun = s.now().Add(interval)
	}
	job.mu.Unlock()
}

// GetJobStatuses returns the status of all jobs.
func (s *Scheduler) GetJobStatuses() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]JobStatus, len(s.jobs))
	for i, job := range s.jobs {
		job.mu.RLock()
		status := JobStatus{
			Name:       job.Name,
			Interval:   job.every(),
			LastRun:    job.lastRun,
			NextRun:    job.nextRun,
			ErrorCount: job.errorCount,
			Running:    job.running,
		}
		if job.lastError != nil {
			status.LastError = job.lastError.Error()
		}
		job.mu.RUnlock()
		statuses[i] = status
	}

	return statuses
}

// GetJob returns a job by name.
func (s *Scheduler) GetJob(name string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, job := range s.jobs {
		if job.Name == name {
			return job
		}
	}
	return nil
}

// TriggerJob manually triggers a job.
func (s *Scheduler) TriggerJob(name string) bool {
	job := s.GetJob(name)
	if job == nil {
		return false
	}

	job.mu.Lock()
	job.nextRun = s.now()
	job.mu.Unlock()

	return true
}

// runSafely runs a job, converting a panic into an error.
func runSafely(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %s: %v", job.Name, r)
		}
	}()
	return job.Run(ctx)
}
