package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
	id             TEXT PRIMARY KEY,
	started_at     INTEGER NOT NULL,
	finished_at    INTEGER NOT NULL,
	start_percent  INTEGER NOT NULL,
	final_percent  INTEGER NOT NULL,
	target_percent INTEGER NOT NULL,
	pulses         INTEGER NOT NULL,
	pump_failures  INTEGER NOT NULL DEFAULT 0,
	outcome        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cycles_started_at ON cycles(started_at);
`

// SQLiteRecorder keeps cycle history in a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the history database at path.
func OpenSQLite(path string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between the loop and the web handler.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &SQLiteRecorder{db: db}, nil
}

// Record inserts e.
func (s *SQLiteRecorder) Record(e Entry) error {
	_, err := s.db.Exec(`INSERT INTO cycles
		(id, started_at, finished_at, start_percent, final_percent, target_percent, pulses, pump_failures, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StartedAt.UnixMicro(), e.FinishedAt.UnixMicro(),
		e.StartPercent, e.FinalPercent, e.TargetPercent, e.Pulses, e.PumpFailures, string(e.Outcome))
	if err != nil {
		return fmt.Errorf("insert cycle %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to limit cycles, newest first.
func (s *SQLiteRecorder) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(`SELECT id, started_at, finished_at, start_percent, final_percent,
		target_percent, pulses, pump_failures, outcome
		FROM cycles ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var started, finished int64
		var outcome string
		if err := rows.Scan(&e.ID, &started, &finished, &e.StartPercent, &e.FinalPercent,
			&e.TargetPercent, &e.Pulses, &e.PumpFailures, &outcome); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		e.StartedAt = time.UnixMicro(started)
		e.FinishedAt = time.UnixMicro(finished)
		e.Outcome = Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteRecorder) Close() error {
	return s.db.Close()
}
