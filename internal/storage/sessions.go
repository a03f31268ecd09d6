package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/user/nsmon/internal/model"
)

// SessionStorage handles connection session persistence.
type SessionStorage struct {
	db *DB
}

// NewSessionStorage creates a new session storage handler.
func NewSessionStorage(db *DB) *SessionStorage {
	return &SessionStorage{db: db}
}

// Start opens a session beginning at startedAt.
func (s *SessionStorage) Start(method model.Method, startedAt time.Time) (*model.Session, error) {
	session := &model.Session{
		ID:        uuid.NewString(),
		Method:    method.String(),
		StartedAt: startedAt,
	}

	err := s.db.WithLock(func() error {
		_, err := s.db.Exec(`INSERT INTO sessions (id, method, started_at) VALUES (?, ?, ?)`,
			session.ID, session.Method, startedAt.UTC())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	return session, nil
}

// End closes the session with the given ID.
func (s *SessionStorage) End(id string, endedAt time.Time) (*model.Session, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !session.Open() {
		return session, nil
	}

	duration := endedAt.Sub(session.StartedAt).Seconds()
	if duration < 0 {
		duration = 0
	}

	err = s.db.WithLock(func() error {
		_, err := s.db.Exec(`UPDATE sessions SET ended_at = ?, duration_seconds = ? WHERE id = ?`,
			endedAt.UTC(), duration, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}

	session.EndedAt = &endedAt
	session.DurationSeconds = duration
	return session, nil
}

// CloseOpen ends every session still open, for example after an unclean
// shutdown. It returns the number of sessions closed.
func (s *SessionStorage) CloseOpen(endedAt time.Time) (int, error) {
	open, err := s.query(`SELECT id, method, started_at, ended_at, duration_seconds
			  FROM sessions WHERE ended_at IS NULL`)
	if err != nil {
		return 0, err
	}

	for _, session := range open {
		if _, err := s.End(session.ID, endedAt); err != nil {
			return 0, err
		}
	}
	return len(open), nil
}

// Get returns a session by ID.
func (s *SessionStorage) Get(id string) (*model.Session, error) {
	sessions, err := s.query(`SELECT id, method, started_at, ended_at, duration_seconds
			  FROM sessions WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("session %s: %w", id, sql.ErrNoRows)
	}
	return &sessions[0], nil
}

// GetCurrent returns the most recent open session, or nil.
func (s *SessionStorage) GetCurrent() (*model.Session, error) {
	sessions, err := s.query(`SELECT id, method, started_at, ended_at, duration_seconds
			  FROM sessions WHERE ended_at IS NULL ORDER BY started_at DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// GetHistory returns sessions started in [since, until), newest first.
func (s *SessionStorage) GetHistory(since, until time.Time) ([]model.Session, error) {
	return s.query(`SELECT id, method, started_at, ended_at, duration_seconds
			  FROM sessions WHERE started_at >= ? AND started_at < ? ORDER BY started_at DESC`,
		since.UTC(), until.UTC())
}

// GetRecent returns the latest sessions, newest first.
func (s *SessionStorage) GetRecent(limit int) ([]model.Session, error) {
	return s.query(`SELECT id, method, started_at, ended_at, duration_seconds
			  FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
}

// CountSince returns the number of sessions started since the given time.
func (s *SessionStorage) CountSince(since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE started_at >= ?`, since.UTC()).Scan(&count)
	return count, err
}

func (s *SessionStorage) query(query string, args ...any) ([]model.Session, error) {
	var sessions []model.Session
	err := s.db.WithRLock(func() error {
		rows, err := s.db.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var session model.Session
			var ended sql.NullTime
			if err := rows.Scan(&session.ID, &session.Method, &session.StartedAt, &ended, &session.DurationSeconds); err != nil {
				return fmt.Errorf("failed to scan session: %w", err)
			}
			session.StartedAt = session.StartedAt.Local()
			if ended.Valid {
				t := ended.Time.Local()
				session.EndedAt = &t
			}
			sessions = append(sessions, session)
		}
		return rows.Err()
	})
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	return sessions, nil
}
