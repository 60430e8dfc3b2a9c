package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"pkt.systems/mdreveal"
	"pkt.systems/mdreveal/internal/logging"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
    key TEXT PRIMARY KEY,
    payload TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db  *sql.DB
	log *log.Logger
}

// OpenSQLite opens (creating if needed) the database at path. The directory
// is created when missing.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("store: empty database path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	s := &SQLite{db: db, log: logging.Default().WithPrefix("store")}
	s.log.Debug("snapshot database open", logging.FieldPath, path)
	return s, nil
}

func (s *SQLite) Save(ctx context.Context, key string, snap mdreveal.PortableSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO snapshots (key, payload, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, string(payload), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("store: save %q: %w", key, err)
	}
	s.log.Debug("snapshot saved", logging.FieldKey, key, logging.FieldCursor, snap.Cursor)
	return nil
}

func (s *SQLite) Load(ctx context.Context, key string) (mdreveal.PortableSnapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return mdreveal.PortableSnapshot{}, ErrNotFound
	}
	if err != nil {
		return mdreveal.PortableSnapshot{}, fmt.Errorf("store: load %q: %w", key, err)
	}
	var snap mdreveal.PortableSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return mdreveal.PortableSnapshot{}, fmt.Errorf("store: decode %q: %w", key, err)
	}
	return snap, nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("store: delete %q: %w", key, err)
	}
	return nil
}

// Keys lists the stored keys, most recently saved first.
func (s *SQLite) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM snapshots ORDER BY updated_at DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("store: list keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("store: list keys: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
