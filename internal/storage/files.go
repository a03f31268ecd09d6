package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/util"
)

// StatusStore persists the current status snapshot. The monitor loop is
// the only writer; presentation processes poll it.
type StatusStore struct {
	path string
}

// NewStatusStore creates a status store at path.
func NewStatusStore(path string) *StatusStore {
	return &StatusStore{path: path}
}

// Path returns the status file location.
func (s *StatusStore) Path() string {
	return s.path
}

// Save overwrites the status file.
func (s *StatusStore) Save(rec model.StatusRecord) error {
	return writeJSON(s.path, rec)
}

// Load reads the status file. It returns nil without error when the
// monitor has not written one yet.
func (s *StatusStore) Load() (*model.StatusRecord, error) {
	var rec model.StatusRecord
	ok, err := readJSON(s.path, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// NewStatusRecord builds the record persisted after a check.
func NewStatusRecord(connected bool, lastCheck time.Time, method model.Method, now time.Time) model.StatusRecord {
	rec := model.StatusRecord{
		Connected:  connected,
		MethodUsed: method.String(),
		Timestamp:  model.Epoch(now),
	}
	if !lastCheck.IsZero() {
		at := model.Epoch(lastCheck)
		rec.LastCheck = &at
	}
	return rec
}

// StatsStore persists the stats record.
type StatsStore struct {
	path string
}

// NewStatsStore creates a stats store at path.
func NewStatsStore(path string) *StatsStore {
	return &StatsStore{path: path}
}

// Save overwrites the stats file.
func (s *StatsStore) Save(rec *model.StatsRecord) error {
	return writeJSON(s.path, rec)
}

// Load reads the stats file. It returns nil without error when no file
// exists yet.
func (s *StatsStore) Load() (*model.StatsRecord, error) {
	var rec model.StatsRecord
	ok, err := readJSON(s.path, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// Backup moves the current stats file aside and returns its new path.
func (s *StatsStore) Backup() (string, error) {
	dest := s.path + ".bak"
	if err := os.Rename(s.path, dest); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", s.path, err)
	}
	return dest, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := util.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return true, nil
}
