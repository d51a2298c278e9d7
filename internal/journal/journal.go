// Package journal keeps a station-local log of completed scans in SQLite.
// It is the surviving record when the records service cannot be reached and
// feeds the station's recent-scans listing.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one completed scan as journaled on the station.
type Entry struct {
	SessionID   string    `json:"sessionId"`
	Timestamp   time.Time `json:"timestamp"`
	HeartRate   int       `json:"heartRate"`
	HRV         float64   `json:"hrv"`
	Systolic    int       `json:"systolic"`
	Diastolic   int       `json:"diastolic"`
	StressLevel string    `json:"stressLevel"`
	Confidence  float64   `json:"confidence"`
	Outcome     string    `json:"outcome"` // where the result landed: cloud or local
}

// Journal persists scan entries in a SQLite database.
type Journal struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (or opens) the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	j := &Journal{db: db}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init() error {
	_, err := j.db.Exec(`CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT,
		timestamp TEXT,
		heart_rate INTEGER,
		hrv REAL,
		systolic INTEGER,
		diastolic INTEGER,
		stress_level TEXT,
		confidence REAL,
		outcome TEXT
	);`)
	if err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

// Append journals one completed scan.
func (j *Journal) Append(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.Exec(`INSERT INTO scans
		(session_id, timestamp, heart_rate, hrv, systolic, diastolic, stress_level, confidence, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID,
		e.Timestamp.Format(time.RFC3339),
		e.HeartRate,
		e.HRV,
		e.Systolic,
		e.Diastolic,
		e.StressLevel,
		e.Confidence,
		e.Outcome,
	)
	if err != nil {
		return fmt.Errorf("failed to journal scan: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.Query(`SELECT session_id, timestamp, heart_rate, hrv, systolic, diastolic, stress_level, confidence, outcome
		FROM scans ORDER BY datetime(timestamp) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.SessionID, &ts, &e.HeartRate, &e.HRV, &e.Systolic, &e.Diastolic, &e.StressLevel, &e.Confidence, &e.Outcome); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			e.Timestamp = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
