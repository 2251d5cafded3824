// Package state implements the SQLite-backed persistent state store: two
// tables, app_state (JSON values) and sessions, opened with WAL journaling
// and retried with backoff on SQLITE_BUSY. The driver is modernc.org/sqlite,
// a pure-Go CGO-free driver.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/shimomut/tfm/internal/tfmerr"
)

const (
	schemaDDL = `
CREATE TABLE IF NOT EXISTS app_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at REAL NOT NULL,
	instance_id TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	instance_id TEXT PRIMARY KEY,
	pid INTEGER NOT NULL,
	started_at REAL NOT NULL,
	last_seen REAL NOT NULL,
	hostname TEXT NOT NULL
);
`
	staleSessionAge = 5 * time.Minute
	busyTimeoutMS   = 30000
)

// Store wraps the SQLite database at ~/.tfm/state.db. State-store failures
// are never fatal to the caller: Store methods return typed errors so
// callers can log and fall back to in-memory defaults, but they never
// panic.
type Store struct {
	db         *sql.DB
	instanceID string
}

// DefaultPath returns ~/.tfm/state.db, creating the ~/.tfm directory if
// needed.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", tfmerr.New(tfmerr.KindIoFailure, "state-path", "", err)
	}
	dir := filepath.Join(home, ".tfm")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", tfmerr.New(tfmerr.KindIoFailure, "state-path", dir, err)
	}
	return filepath.Join(dir, "state.db"), nil
}

// Open opens (and migrates) the state database at path, configuring WAL
// mode and NORMAL synchronous.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path, busyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, tfmerr.New(tfmerr.KindIoFailure, "state-open", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; one conn avoids lock thrash
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, tfmerr.New(tfmerr.KindIoFailure, "state-migrate", path, err)
	}
	return &Store{db: db, instanceID: uuid.NewString()}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// InstanceID is this process's session identifier.
func (s *Store) InstanceID() string { return s.instanceID }

// retryOnBusy runs fn, retrying with exponential backoff and jitter if the
// underlying driver reports SQLITE_BUSY (another instance holds the write
// lock).
func retryOnBusy(ctx context.Context, fn func() error) error {
	backoff := 10 * time.Millisecond
	for attempt := 0; attempt < 8; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "busy") && !strings.Contains(err.Error(), "locked") {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + time.Duration(rand.Intn(5))*time.Millisecond):
		}
		backoff *= 2
	}
	return fn()
}

// PutJSON serializes value as JSON and stores it under key in app_state.
func (s *Store) PutJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return tfmerr.New(tfmerr.KindIoFailure, "state-put", key, err)
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO app_state(key, value, updated_at, instance_id) VALUES (?, ?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at, instance_id=excluded.instance_id`,
			key, string(data), nowUnix(), s.instanceID)
		return err
	})
}

// GetJSON loads and unmarshals the value stored under key into dst. ok is
// false if no row exists for key.
func (s *Store) GetJSON(ctx context.Context, key string, dst interface{}) (ok bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, tfmerr.New(tfmerr.KindIoFailure, "state-get", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, tfmerr.New(tfmerr.KindDecodingFailure, "state-get", key, err)
	}
	return true, nil
}

// Heartbeat upserts this instance's session row with the current time.
func (s *Store) Heartbeat(ctx context.Context, pid int, hostname string) error {
	return retryOnBusy(ctx, func() error {
		now := nowUnix()
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions(instance_id, pid, started_at, last_seen, hostname) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(instance_id) DO UPDATE SET last_seen=excluded.last_seen`,
			s.instanceID, pid, now, now, hostname)
		return err
	})
}

// Session is one row of the sessions table.
type Session struct {
	InstanceID string
	PID        int
	StartedAt  time.Time
	LastSeen   time.Time
	Hostname   string
}

// CleanStaleSessions deletes session rows whose last_seen is older than
// staleSessionAge. Callers run this once at startup.
func (s *Store) CleanStaleSessions(ctx context.Context) error {
	cutoff := time.Now().Add(-staleSessionAge).Unix()
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_seen < ?`, cutoff)
		return err
	})
}

func nowUnix() float64 { return float64(time.Now().UnixNano()) / 1e9 }
