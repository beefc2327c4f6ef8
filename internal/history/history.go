// Package history persists a log of EVAL splices and Quit-terminated
// runs to SQLite, enabled via --history <path>. Grounded on
// lib/runtime/persistence.go's NewPersistence/NewPersistenceDefault
// shape, swapped onto the pure-Go modernc.org/sqlite driver so the
// module needs no cgo toolchain.
package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store records interpreter session events.
type Store struct {
	db        *sql.DB
	sessionID string
	mu        sync.Mutex
}

// Open creates or appends to the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS evals (
		session_id TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		source     TEXT NOT NULL,
		entry      INTEGER NOT NULL,
		cached     INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("history: creating evals table: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		session_id TEXT PRIMARY KEY,
		exit_code  INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("history: creating runs table: %w", err)
	}
	return &Store{db: db, sessionID: uuid.NewString()}, nil
}

// RecordEval logs one EVAL re-entry: whether it hit the splice cache, and
// the absolute entry offset it jumped to.
func (s *Store) RecordEval(seq int, source string, entry int, cached bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO evals(session_id, seq, source, entry, cached, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.sessionID, seq, source, entry, boolToInt(cached), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// RecordRun logs the session's terminal exit status.
func (s *Store) RecordRun(exitCode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO runs(session_id, exit_code, created_at) VALUES (?, ?, ?)`,
		s.sessionID, exitCode, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
