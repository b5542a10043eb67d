// Package history keeps an index of dictation sessions in SQLite so the
// last transcript can be found again after a restart.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	sessionId TEXT NOT NULL,
	startedAt REAL NOT NULL,
	endedAt REAL,
	transcriptPath TEXT NOT NULL,
	logPath TEXT NOT NULL,
	utterances INTEGER NOT NULL DEFAULT 0,
	saved INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS sessions_started ON sessions(startedAt);
`

type Session struct {
	ID             string
	SessionID      string
	StartedAt      time.Time
	EndedAt        *time.Time
	TranscriptPath string
	LogPath        string
	Utterances     int
	Saved          bool
}

// Duration is zero for sessions that never finished.
func (s Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Begin records a started session and returns its row id.
func (s *Store) Begin(sessionID string, started time.Time, transcriptPath, logPath string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, sessionId, startedAt, transcriptPath, logPath)
		VALUES (?, ?, ?, ?, ?)
	`, id, sessionID, unixFromTime(started), transcriptPath, logPath)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

func (s *Store) Finish(id string, ended time.Time, utterances int, saved bool) error {
	res, err := s.db.Exec(`
		UPDATE sessions SET endedAt = ?, utterances = ?, saved = ?
		WHERE id = ?
	`, unixFromTime(ended), utterances, saved, id)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// Recent returns up to limit sessions, newest first.
func (s *Store) Recent(limit int) ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, sessionId, startedAt, endedAt, transcriptPath, logPath, utterances, saved
		FROM sessions
		ORDER BY startedAt DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var startedAt float64
		var endedAt sql.NullFloat64
		if err := rows.Scan(&sess.ID, &sess.SessionID, &startedAt, &endedAt,
			&sess.TranscriptPath, &sess.LogPath, &sess.Utterances, &sess.Saved); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.StartedAt = timeFromUnix(startedAt)
		if endedAt.Valid {
			t := timeFromUnix(endedAt.Float64)
			sess.EndedAt = &t
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// LatestTranscript returns the transcript path of the most recent session
// that saved one, or "" if there is none.
func (s *Store) LatestTranscript() (string, error) {
	var path string
	err := s.db.QueryRow(`
		SELECT transcriptPath FROM sessions
		WHERE saved = 1
		ORDER BY startedAt DESC
		LIMIT 1
	`).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query latest transcript: %w", err)
	}
	return path, nil
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(f float64) time.Time {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
