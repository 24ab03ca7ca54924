package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/proxy-batch-checker/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS batch_stats (
	id              INTEGER PRIMARY KEY CHECK (id = 1),
	scheme          TEXT    NOT NULL,
	total           INTEGER NOT NULL,
	success         INTEGER NOT NULL,
	fail            INTEGER NOT NULL,
	malformed       INTEGER NOT NULL,
	success_percent REAL    NOT NULL,
	duration_ms     INTEGER NOT NULL,
	last_check_ms   INTEGER NOT NULL,
	updated_ms      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS working_proxies (
	position INTEGER PRIMARY KEY,
	proxy    TEXT NOT NULL
);
`

// SQLiteStorage keeps the last batch in two tables: one stats row and the
// working list in publish order.
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serialises writers on the same file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Save(snapshot *types.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	st := snapshot.Stats
	if _, err := tx.Exec(`INSERT OR REPLACE INTO batch_stats
		(id, scheme, total, success, fail, malformed, success_percent, duration_ms, last_check_ms, updated_ms)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.Scheme, st.Total, st.Success, st.Fail, st.Malformed, st.SuccessPercent,
		st.DurationMs, st.LastCheckTime.UnixMilli(), snapshot.Updated.UnixMilli()); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM working_proxies"); err != nil {
		return fmt.Errorf("clear working list: %w", err)
	}

	insert, err := tx.Prepare("INSERT INTO working_proxies (position, proxy) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	for i, p := range snapshot.Working {
		if _, err := insert.Exec(i, p); err != nil {
			return fmt.Errorf("insert proxy %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Load returns nil, nil when nothing has been saved yet.
func (s *SQLiteStorage) Load() (*types.Snapshot, error) {
	var snap types.Snapshot
	var lastCheck, updated int64
	err := s.db.QueryRow(`SELECT scheme, total, success, fail, malformed, success_percent,
		duration_ms, last_check_ms, updated_ms FROM batch_stats WHERE id = 1`).Scan(
		&snap.Stats.Scheme, &snap.Stats.Total, &snap.Stats.Success, &snap.Stats.Fail,
		&snap.Stats.Malformed, &snap.Stats.SuccessPercent, &snap.Stats.DurationMs,
		&lastCheck, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query stats: %w", err)
	}
	snap.Stats.LastCheckTime = time.UnixMilli(lastCheck).UTC()
	snap.Updated = time.UnixMilli(updated).UTC()

	rows, err := s.db.Query("SELECT proxy FROM working_proxies ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query working list: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan proxy: %w", err)
		}
		snap.Working = append(snap.Working, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read working list: %w", err)
	}

	return &snap, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
