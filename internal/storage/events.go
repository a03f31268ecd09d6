package storage

import (
	"fmt"
	"time"

	"github.com/user/nsmon/internal/model"
)

// EventStorage handles monitor event persistence.
type EventStorage struct {
	db *DB
}

// NewEventStorage creates a new event storage handler.
func NewEventStorage(db *DB) *EventStorage {
	return &EventStorage{db: db}
}

// Record stores an event.
func (s *EventStorage) Record(eventType, description string, at time.Time) error {
	return s.db.WithLock(func() error {
		_, err := s.db.Exec(`INSERT INTO events (type, description, timestamp) VALUES (?, ?, ?)`,
			eventType, description, at.UTC())
		if err != nil {
			return fmt.Errorf("failed to record event: %w", err)
		}
		return nil
	})
}

// GetSince returns events since the given time, newest first. A limit of
// zero or less returns every event.
func (s *EventStorage) GetSince(since time.Time, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = -1
	}

	var events []model.Event
	err := s.db.WithRLock(func() error {
		rows, err := s.db.Query(`SELECT id, type, description, timestamp FROM events
				  WHERE timestamp >= ? ORDER BY timestamp DESC, id DESC LIMIT ?`, since.UTC(), limit)
		if err != nil {
			return fmt.Errorf("failed to query events: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var e model.Event
			if err := rows.Scan(&e.ID, &e.Type, &e.Description, &e.Timestamp); err != nil {
				return fmt.Errorf("failed to scan event: %w", err)
			}
			e.Timestamp = e.Timestamp.Local()
			events = append(events, e)
		}
		return rows.Err()
	})

	return events, err
}

// CountByType returns event counts per type since the given time.
func (s *EventStorage) CountByType(since time.Time) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.db.WithRLock(func() error {
		rows, err := s.db.Query(`SELECT type, COUNT(*) FROM events WHERE timestamp >= ? GROUP BY type`, since.UTC())
		if err != nil {
			return fmt.Errorf("failed to count events: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var t string
			var n int
			if err := rows.Scan(&t, &n); err != nil {
				return err
			}
			counts[t] = n
		}
		return rows.Err()
	})
	return counts, err
}
