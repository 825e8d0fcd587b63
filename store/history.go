package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/modelcat/modelcat/models"
)

// ScanRecord is one row of the scan history: the aggregate summary of a
// finished batch.
type ScanRecord struct {
	ID        int64         `json:"id"`
	Directory string        `json:"directory"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Unchanged int           `json:"unchanged"`
	Missing   int           `json:"missing"`
	Errored   int           `json:"errored"`
	Skipped   int           `json:"skipped"`
}

// History persists batch summaries in a small sqlite database so `stats`
// can show how scans behaved over time. Writes are mutex-protected; sqlite
// handles concurrent readers.
type History struct {
	conn    *sql.DB
	writeMu sync.Mutex
}

// OpenHistory opens (or creates) the scan history under the output dir.
func OpenHistory(outputDir string) (*History, error) {
	dir := filepath.Join(outputDir, internalDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating history dir %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", filepath.Join(dir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("opening scan history: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("configuring scan history: %w", err)
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		directory TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		total INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		unchanged INTEGER NOT NULL,
		missing INTEGER NOT NULL,
		errored INTEGER NOT NULL,
		skipped INTEGER NOT NULL
	)`
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating scan history schema: %w", err)
	}

	return &History{conn: conn}, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return h.conn.Close()
}

// Record appends one batch summary.
func (h *History) Record(directory string, summary models.BatchSummary) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	_, err := h.conn.Exec(
		`INSERT INTO scans (directory, started_at, duration_ms, total, succeeded, unchanged, missing, errored, skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		directory,
		summary.StartedAt.UnixMilli(),
		summary.Duration.Milliseconds(),
		summary.Total,
		summary.Succeeded,
		summary.Unchanged,
		summary.Missing,
		summary.Errored,
		summary.Skipped,
	)
	if err != nil {
		return fmt.Errorf("recording scan: %w", err)
	}
	return nil
}

// Recent returns up to limit scan records, newest first.
func (h *History) Recent(limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.conn.Query(
		`SELECT id, directory, started_at, duration_ms, total, succeeded, unchanged, missing, errored, skipped
		 FROM scans ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying scan history: %w", err)
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		var r ScanRecord
		var startedAt, durationMS int64
		if err := rows.Scan(&r.ID, &r.Directory, &startedAt, &durationMS,
			&r.Total, &r.Succeeded, &r.Unchanged, &r.Missing, &r.Errored, &r.Skipped); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedAt)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, r)
	}
	return records, rows.Err()
}
