package eventlog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type recordingWriter struct {
	batches [][]string
	err     error
}

func (w *recordingWriter) WriteLines(lines []string) error {
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, append([]string(nil), lines...))
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBuffer(w Writer, policy Policy) (*Buffer, *clock) {
	c := &clock{t: time.Date(2024, 5, 10, 14, 3, 7, 0, time.Local)}
	b := NewBuffer(w, policy)
	b.SetClock(c.now)
	return b, c
}

func TestAppendFlushesAtSize(t *testing.T) {
	w := &recordingWriter{}
	b, _ := newTestBuffer(w, Policy{Enabled: true, Size: 3, FlushInterval: time.Minute})

	b.Append("one")
	b.Append("two")
	if len(w.batches) != 0 {
		t.Fatalf("size-1 entries must not flush, got %d batches", len(w.batches))
	}
	b.Append("three")
	if len(w.batches) != 1 || len(w.batches[0]) != 3 {
		t.Fatalf("expected one batch of 3, got %v", w.batches)
	}
	if b.Len() != 0 {
		t.Errorf("buffer should be empty after flush, has %d", b.Len())
	}
	if w.batches[0][0] != "2024-05-10 14:03:07 - one" {
		t.Errorf("unexpected line format %q", w.batches[0][0])
	}
}

func TestAppendFlushesAfterInterval(t *testing.T) {
	w := &recordingWriter{}
	b, c := newTestBuffer(w, Policy{Enabled: true, Size: 10, FlushInterval: 30 * time.Second})

	b.Append("first")
	c.advance(30 * time.Second)
	b.Append("second")
	if len(w.batches) != 0 {
		t.Fatal("interval is exclusive, should not flush at exactly 30s")
	}

	c.advance(time.Second)
	b.Append("third")
	if len(w.batches) != 1 || len(w.batches[0]) != 3 {
		t.Fatalf("expected time-based flush of 3, got %v", w.batches)
	}
}

func TestAppendDisabledIsNoop(t *testing.T) {
	w := &recordingWriter{}
	b, _ := newTestBuffer(w, Policy{Enabled: false, Size: 1})
	b.Append("ignored")
	if b.Len() != 0 || len(w.batches) != 0 {
		t.Error("disabled buffer should drop appends")
	}
}

func TestFlushFailureKeepsEntries(t *testing.T) {
	w := &recordingWriter{err: errors.New("disk full")}
	b, _ := newTestBuffer(w, Policy{Enabled: true, Size: 2, FlushInterval: time.Minute})

	b.Append("a")
	b.Append("b")
	if b.Len() != 2 {
		t.Fatalf("failed flush must keep entries, have %d", b.Len())
	}

	w.err = nil
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if b.Len() != 0 || len(w.batches) != 1 || len(w.batches[0]) != 2 {
		t.Errorf("retry should deliver both entries, got %v", w.batches)
	}
}

func TestFlushEmptyBuffer(t *testing.T) {
	w := &recordingWriter{}
	b, _ := newTestBuffer(w, Policy{Enabled: true, Size: 5})
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(w.batches) != 0 {
		t.Error("empty flush should not write")
	}
}

func TestSetPolicyKeepsQueuedEntries(t *testing.T) {
	w := &recordingWriter{}
	b, _ := newTestBuffer(w, Policy{Enabled: true, Size: 10, FlushInterval: time.Minute})
	b.Append("queued")

	b.SetPolicy(Policy{Enabled: true, Size: 2, FlushInterval: time.Minute})
	b.Append("trigger")
	if len(w.batches) != 1 || len(w.batches[0]) != 2 {
		t.Errorf("new size should apply to queued entries, got %v", w.batches)
	}
}

func TestFileWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "connections.log")
	w := FileWriter{Path: path}

	if err := w.WriteLines([]string{"line 1", "line 2"}); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteLines([]string{"line 3"}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 || lines[2] != "line 3" {
		t.Errorf("unexpected file content %q", data)
	}
}
