package control

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sugawarayuuta/sonnet"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink periodically persists MetricsRegistry snapshots to a SQLite
// database, for post-mortem inspection after a process restarts — an
// optional extension beyond the registry's purely in-memory storage.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink opens (creating if absent) a SQLite database at path and
// ensures its history table exists.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("control: open sqlite sink: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS metrics_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		observed_at INTEGER NOT NULL,
		snapshot_json TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("control: create schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Record serializes mr's current snapshot and inserts one history row.
func (s *SQLiteSink) Record(mr *MetricsRegistry, at time.Time) error {
	snap := mr.GetSnapshot()
	blob, err := sonnet.Marshal(snap)
	if err != nil {
		return fmt.Errorf("control: marshal snapshot: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT INTO metrics_history (observed_at, snapshot_json) VALUES (?, ?)",
		at.Unix(), string(blob),
	)
	return err
}

// Recent returns the n most recent snapshots, newest first.
func (s *SQLiteSink) Recent(n int) ([]map[string]any, error) {
	rows, err := s.db.Query(
		"SELECT snapshot_json FROM metrics_history ORDER BY id DESC LIMIT ?", n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var snap map[string]any
		if err := sonnet.Unmarshal([]byte(blob), &snap); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error { return s.db.Close() }
