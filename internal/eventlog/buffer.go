// Package eventlog implements the buffered connection event log.
package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/util"
)

// Writer appends formatted lines to durable storage.
type Writer interface {
	WriteLines(lines []string) error
}

// FileWriter appends lines to a text file.
type FileWriter struct {
	Path string
}

// WriteLines appends lines to the file, creating it when needed.
func (w FileWriter) WriteLines(lines []string) error {
	if err := util.EnsureDir(filepath.Dir(w.Path)); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(w.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}

	_, err = f.WriteString(strings.Join(lines, "\n") + "\n")
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write event log: %w", err)
	}
	return nil
}

// Policy controls when the buffer is written out.
type Policy struct {
	Enabled       bool
	Size          int
	FlushInterval time.Duration
}

// PolicyFor derives the buffer policy from configuration.
func PolicyFor(cfg *util.Config) Policy {
	return Policy{
		Enabled:       cfg.Logging,
		Size:          cfg.LogBufferSize,
		FlushInterval: cfg.FlushEvery(),
	}
}

// Buffer holds formatted entries until a size or age threshold is hit.
// It is safe for concurrent use by the monitor loop and the flush job.
type Buffer struct {
	mu        sync.Mutex
	w         Writer
	policy    Policy
	entries   []string
	lastFlush time.Time
	now       func() time.Time
}

// NewBuffer creates a buffer writing through w.
func NewBuffer(w Writer, policy Policy) *Buffer {
	b := &Buffer{
		w:      w,
		policy: policy,
		now:    time.Now,
	}
	b.lastFlush = b.now()
	return b
}

// SetClock overrides the buffer clock and restarts the flush timer.
func (b *Buffer) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
	b.lastFlush = now()
}

// SetPolicy replaces the flush policy. Entries already queued are kept.
func (b *Buffer) SetPolicy(policy Policy) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.policy = policy
}

// Policy returns the current policy.
func (b *Buffer) Policy() Policy {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.policy
}

// Append queues a message when logging is enabled and flushes if a
// threshold is reached.
func (b *Buffer) Append(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.policy.Enabled {
		return
	}

	now := b.now()
	b.entries = append(b.entries, now.Format(model.DateTimeLayout)+" - "+message)

	size := b.policy.Size
	if size <= 0 {
		size = util.DefaultBufferSize
	}
	if len(b.entries) >= size || (b.policy.FlushInterval > 0 && now.Sub(b.lastFlush) > b.policy.FlushInterval) {
		b.flush(now)
	}
}

// Flush writes out any queued entries. On failure the entries stay queued.
func (b *Buffer) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flush(b.now())
}

// Len returns the number of queued entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Buffer) flush(now time.Time) error {
	if len(b.entries) == 0 {
		b.lastFlush = now
		return nil
	}

	if err := b.w.WriteLines(b.entries); err != nil {
		util.Warn("Event log flush failed, keeping %d entries: %v", len(b.entries), err)
		return err
	}

	b.entries = nil
	b.lastFlush = now
	return nil
}
