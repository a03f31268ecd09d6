// Package stats keeps connection session accounting.
package stats

import (
	"sync"
	"time"

	"github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/util"
)

// Store persists the stats record.
type Store interface {
	Load() (*model.StatsRecord, error)
	Save(rec *model.StatsRecord) error
}

// Transition is the session edge observed by OnTick.
type Transition int

const (
	// NoTransition means the status did not change.
	NoTransition Transition = iota
	// SessionStarted is a false to true edge.
	SessionStarted
	// SessionEnded is a true to false edge.
	SessionEnded
)

func (t Transition) String() string {
	switch t {
	case SessionStarted:
		return "started"
	case SessionEnded:
		return "ended"
	default:
		return "none"
	}
}

// NewRecord returns an empty record reset on now's date.
func NewRecord(now time.Time) *model.StatsRecord {
	return &model.StatsRecord{
		LastReset:         now.Format(model.DateLayout),
		ConnectionHistory: []model.HistoryEntry{},
	}
}

// Backuper is implemented by stores that can move an unreadable record
// aside so a fresh one can be written in its place.
type Backuper interface {
	Backup() (string, error)
}

// Tracker owns the stats record. The monitor loop is its only writer.
//
// Until the persisted record has been read (or moved aside) nothing is
// saved, so a transient read error never overwrites existing totals.
type Tracker struct {
	mu     sync.Mutex
	store  Store
	rec    *model.StatsRecord
	loaded bool
	now    func() time.Time
}

// NewTracker creates a tracker backed by store. Call Load before use.
func NewTracker(store Store) *Tracker {
	t := &Tracker{
		store: store,
		now:   time.Now,
	}
	t.rec = NewRecord(t.now())
	return t
}

// SetClock overrides the tracker clock.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Load reads the persisted record and applies the daily reset. On failure
// the tracker counts in memory and retries the load on every tick.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.load(t.now())
	if err != nil && !t.loaded {
		util.Warn("Failed to load stats, not saving until it loads: %v", err)
	}
	return err
}

// Loaded reports whether the persisted record has been read.
func (t *Tracker) Loaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaded
}

func (t *Tracker) load(now time.Time) error {
	rec, err := t.store.Load()
	if err != nil {
		if b, ok := t.store.(Backuper); ok {
			if moved, berr := b.Backup(); berr == nil {
				util.Warn("Unreadable stats moved to %s, starting fresh: %v", moved, err)
				t.rec = NewRecord(now)
				t.loaded = true
				t.save()
			}
		}
		return err
	}
	if rec == nil {
		rec = NewRecord(now)
	}
	if rec.ConnectionHistory == nil {
		rec.ConnectionHistory = []model.HistoryEntry{}
	}
	t.rec = rec
	t.loaded = true

	if t.rollover(now) {
		t.save()
	}
	return nil
}

// OnTick folds one observation into the record and persists it.
func (t *Tracker) OnTick(connected, previous bool) Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.loaded {
		if err := t.load(now); err != nil {
			util.Debug("Stats still unreadable: %v", err)
		}
	}
	t.rollover(now)

	transition := NoTransition
	switch {
	case connected && !previous:
		transition = SessionStarted
		t.rec.TotalConnections++
		t.rec.ConnectionsToday++
		at := model.Epoch(now)
		t.rec.LastConnectionTime = &at
		t.rec.ConnectionHistory = append(t.rec.ConnectionHistory, model.HistoryEntry{
			Timestamp: at,
			Datetime:  now.Format(model.DateTimeLayout),
		})
		if n := len(t.rec.ConnectionHistory); n > model.MaxHistory {
			t.rec.ConnectionHistory = append([]model.HistoryEntry(nil), t.rec.ConnectionHistory[n-model.MaxHistory:]...)
		}

	case !connected && previous:
		transition = SessionEnded
		if t.rec.LastConnectionTime != nil {
			t.rec.TotalConnectionDuration += model.Epoch(now) - *t.rec.LastConnectionTime
		}
	}

	t.save()
	return transition
}

// Snapshot returns a copy of the current record.
func (t *Tracker) Snapshot() model.StatsRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := *t.rec
	rec.ConnectionHistory = append([]model.HistoryEntry(nil), t.rec.ConnectionHistory...)
	if t.rec.LastConnectionTime != nil {
		at := *t.rec.LastConnectionTime
		rec.LastConnectionTime = &at
	}
	return rec
}

// rollover resets the daily counter on the first observation of a new day.
func (t *Tracker) rollover(now time.Time) bool {
	today := now.Format(model.DateLayout)
	if t.rec.LastReset == today {
		return false
	}
	t.rec.ConnectionsToday = 0
	t.rec.LastReset = today
	return true
}

func (t *Tracker) save() {
	if !t.loaded {
		return
	}
	if err := t.store.Save(t.rec); err != nil {
		util.Warn("Failed to save stats: %v", err)
	}
}
