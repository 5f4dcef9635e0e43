// Package history persists a local audit log of questions and answers.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded question/answer exchange.
type Entry struct {
	ID       int64
	AskedAt  time.Time
	Agent    string
	Question string
	Answer   string
	Category string // category of the final emission
	Duration time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	asked_at    INTEGER NOT NULL,
	agent       TEXT NOT NULL,
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	category    TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exchanges_asked_at ON exchanges(asked_at);
`

// Store is a SQLite-backed exchange log.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the per-user database location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".askforge-history.db"
	}
	return filepath.Join(home, ".askforge", "history.db")
}

// Open creates or opens the database at path, applying the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record appends one exchange and sets e.ID.
func (s *Store) Record(e *Entry) error {
	if e.AskedAt.IsZero() {
		e.AskedAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO exchanges (asked_at, agent, question, answer, category, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.AskedAt.UnixMilli(), e.Agent, e.Question, e.Answer, e.Category, e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record exchange: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("exchange id: %w", err)
	}
	e.ID = id
	return nil
}

// Recent returns up to n exchanges, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, asked_at, agent, question, answer, category, duration_ms
		 FROM exchanges ORDER BY asked_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var askedMs, durMs int64
		if err := rows.Scan(&e.ID, &askedMs, &e.Agent, &e.Question, &e.Answer, &e.Category, &durMs); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		e.AskedAt = time.UnixMilli(askedMs)
		e.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return out, nil
}
