package stats

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/user/nsmon/internal/model"
)

type memStore struct {
	rec     *model.StatsRecord
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load() (*model.StatsRecord, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.rec, nil
}

func (m *memStore) Save(rec *model.StatsRecord) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *rec
	m.rec = &cp
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker(t *testing.T, store *memStore, start time.Time) (*Tracker, *clock) {
	t.Helper()
	c := &clock{t: start}
	tr := NewTracker(store)
	tr.SetClock(c.now)
	if err := tr.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return tr, c
}

func TestSessionDurationAccounting(t *testing.T) {
	start := time.Date(2024, 5, 10, 9, 0, 0, 0, time.Local)
	tr, c := newTestTracker(t, &memStore{}, start)

	if got := tr.OnTick(true, false); got != SessionStarted {
		t.Fatalf("expected session start, got %s", got)
	}
	c.advance(90 * time.Second)
	if got := tr.OnTick(true, true); got != NoTransition {
		t.Fatalf("expected no transition, got %s", got)
	}
	if got := tr.OnTick(false, true); got != SessionEnded {
		t.Fatalf("expected session end, got %s", got)
	}

	rec := tr.Snapshot()
	if math.Abs(rec.TotalConnectionDuration-90) > 1e-3 {
		t.Errorf("duration = %f, want 90", rec.TotalConnectionDuration)
	}
	if rec.TotalConnections != 1 || rec.ConnectionsToday != 1 {
		t.Errorf("counters = %d/%d, want 1/1", rec.TotalConnections, rec.ConnectionsToday)
	}
	if len(rec.ConnectionHistory) != 1 {
		t.Fatalf("expected one history entry, got %d", len(rec.ConnectionHistory))
	}
	entry := rec.ConnectionHistory[0]
	if entry.Datetime != "2024-05-10 09:00:00" {
		t.Errorf("history datetime = %q", entry.Datetime)
	}
	if entry.Timestamp != model.Epoch(start) {
		t.Errorf("history timestamp = %f", entry.Timestamp)
	}
}

func TestEndWithoutStartAddsNothing(t *testing.T) {
	tr, _ := newTestTracker(t, &memStore{}, time.Now())
	tr.OnTick(false, true)
	if d := tr.Snapshot().TotalConnectionDuration; d != 0 {
		t.Errorf("duration = %f, want 0", d)
	}
}

func TestDailyResetOnLoad(t *testing.T) {
	last := 1714000000.0
	store := &memStore{rec: &model.StatsRecord{
		TotalConnections:        7,
		ConnectionsToday:        3,
		LastConnectionTime:      &last,
		TotalConnectionDuration: 600,
		LastReset:               "2024-05-09",
		ConnectionHistory: []model.HistoryEntry{
			{Timestamp: last, Datetime: "2024-05-09 10:00:00"},
		},
	}}

	tr, _ := newTestTracker(t, store, time.Date(2024, 5, 10, 0, 0, 5, 0, time.Local))

	rec := tr.Snapshot()
	if rec.ConnectionsToday != 0 {
		t.Errorf("connections_today = %d, want 0", rec.ConnectionsToday)
	}
	if rec.LastReset != "2024-05-10" {
		t.Errorf("last_reset = %s", rec.LastReset)
	}
	if rec.TotalConnections != 7 || rec.TotalConnectionDuration != 600 || len(rec.ConnectionHistory) != 1 {
		t.Errorf("totals and history must survive the reset: %+v", rec)
	}
	if store.saves != 1 {
		t.Errorf("reset should be persisted once, got %d saves", store.saves)
	}
}

func TestDailyResetOnTick(t *testing.T) {
	tr, c := newTestTracker(t, &memStore{}, time.Date(2024, 5, 10, 23, 59, 0, 0, time.Local))

	tr.OnTick(true, false)
	tr.OnTick(false, true)
	if got := tr.Snapshot().ConnectionsToday; got != 1 {
		t.Fatalf("connections_today = %d, want 1", got)
	}

	c.advance(2 * time.Minute)
	tr.OnTick(true, false)

	rec := tr.Snapshot()
	if rec.ConnectionsToday != 1 || rec.TotalConnections != 2 {
		t.Errorf("after midnight: today=%d total=%d, want 1/2", rec.ConnectionsToday, rec.TotalConnections)
	}
	if rec.LastReset != "2024-05-11" {
		t.Errorf("last_reset = %s", rec.LastReset)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	tr, c := newTestTracker(t, &memStore{}, time.Date(2024, 5, 10, 8, 0, 0, 0, time.Local))

	for i := 0; i < model.MaxHistory+5; i++ {
		tr.OnTick(true, false)
		c.advance(time.Second)
		tr.OnTick(false, true)
		c.advance(time.Second)
	}

	rec := tr.Snapshot()
	if len(rec.ConnectionHistory) != model.MaxHistory {
		t.Fatalf("history length = %d, want %d", len(rec.ConnectionHistory), model.MaxHistory)
	}
	if rec.ConnectionHistory[0].Datetime != "2024-05-10 08:00:10" {
		t.Errorf("oldest entries should be evicted first, oldest is %s", rec.ConnectionHistory[0].Datetime)
	}
	if rec.TotalConnections != model.MaxHistory+5 {
		t.Errorf("total = %d", rec.TotalConnections)
	}
}

func TestLoadFailureStartsFresh(t *testing.T) {
	store := &memStore{loadErr: errors.New("bad json")}
	tr := NewTracker(store)
	if err := tr.Load(); err == nil {
		t.Error("expected load error to be returned")
	}
	if rec := tr.Snapshot(); rec.TotalConnections != 0 || rec.ConnectionHistory == nil {
		t.Errorf("expected fresh record, got %+v", rec)
	}
}

type flakyStore struct {
	memStore
	failures int
}

func (f *flakyStore) Load() (*model.StatsRecord, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("sharing violation")
	}
	return f.memStore.Load()
}

func TestLoadFailureDoesNotOverwriteTotals(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.Local)
	persisted := &model.StatsRecord{
		TotalConnections:        42,
		TotalConnectionDuration: 3600,
		LastReset:               now.Format(model.DateLayout),
		ConnectionHistory:       []model.HistoryEntry{},
	}
	store := &flakyStore{memStore: memStore{rec: persisted}, failures: 2}

	tr := NewTracker(store)
	tr.SetClock(func() time.Time { return now })
	if err := tr.Load(); err == nil {
		t.Fatal("expected load error")
	}

	tr.OnTick(false, false)
	if store.saves != 0 {
		t.Fatalf("nothing should be saved before the record loads, got %d saves", store.saves)
	}
	if tr.Loaded() {
		t.Fatal("second attempt should still fail")
	}

	tr.OnTick(true, false)
	if !tr.Loaded() {
		t.Fatal("third attempt should load the record")
	}
	if store.rec.TotalConnections != 43 || store.rec.TotalConnectionDuration != 3600 {
		t.Errorf("persisted totals should be kept, got %+v", store.rec)
	}
}

type backupStore struct {
	memStore
	backedUp bool
}

func (b *backupStore) Backup() (string, error) {
	b.backedUp = true
	b.loadErr = nil
	return "stats.json.bak", nil
}

func TestCorruptRecordIsBackedUp(t *testing.T) {
	store := &backupStore{memStore: memStore{loadErr: errors.New("bad json")}}
	tr := NewTracker(store)
	if err := tr.Load(); err == nil {
		t.Error("load error should still be returned")
	}
	if !store.backedUp || !tr.Loaded() {
		t.Fatalf("unreadable record should be moved aside, backed up=%v loaded=%v", store.backedUp, tr.Loaded())
	}
	if store.rec == nil || store.rec.TotalConnections != 0 {
		t.Errorf("fresh record should be saved, got %+v", store.rec)
	}
}

func TestSaveFailureKeepsState(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	tr, _ := newTestTracker(t, store, time.Now())
	tr.OnTick(true, false)
	if tr.Snapshot().TotalConnections != 1 {
		t.Error("in-memory state should survive a failed save")
	}
}
