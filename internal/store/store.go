// Package store keeps a durable log of samples and state transitions in a
// SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"turbidity-monitor/internal/errs"
	"turbidity-monitor/internal/series"
)

// DB wraps the sample database.
type DB struct {
	*sql.DB
}

// Open opens or creates the database at path and applies pending migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", errs.ErrResource, path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%w: %s: %w", errs.ErrResource, pragma, err)
		}
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	version, _, err := db.MigrateVersion()
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	slog.Info("sample database ready", "path", path, "schema_version", version)
	return db, nil
}

// RecordSample stores one sample for a run. Re-recording the same timestamp
// is ignored.
func (db *DB) RecordSample(runID string, s series.Sample) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO samples (run_id, stamp, taken_at, raw, normalized)
		VALUES (?, ?, ?, ?, ?)`,
		runID, s.Stamp, s.Time.UnixMicro(), s.Raw, s.Normalized)
	if err != nil {
		return fmt.Errorf("%w: record sample: %w", errs.ErrResource, err)
	}
	return nil
}

// Samples returns the samples of a run in time order.
func (db *DB) Samples(runID string) ([]series.Sample, error) {
	rows, err := db.Query(`
		SELECT stamp, taken_at, raw, normalized
		FROM samples
		WHERE run_id = ?
		ORDER BY taken_at, stamp`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []series.Sample
	for rows.Next() {
		var s series.Sample
		var micros int64
		if err := rows.Scan(&s.Stamp, &micros, &s.Raw, &s.Normalized); err != nil {
			return nil, err
		}
		s.Time = time.UnixMicro(micros)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Transition is a recorded state change.
type Transition struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Event      string    `json:"event"`
	Samples    int       `json:"samples"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RecordTransition stores a state change.
func (db *DB) RecordTransition(t Transition) error {
	_, err := db.Exec(`
		INSERT INTO transitions (run_id, from_state, to_state, event, samples, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.RunID, t.From, t.To, t.Event, t.Samples, t.OccurredAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("%w: record transition: %w", errs.ErrResource, err)
	}
	return nil
}

// Transitions returns the state changes of a run in the order they happened.
func (db *DB) Transitions(runID string) ([]Transition, error) {
	rows, err := db.Query(`
		SELECT transition_id, run_id, from_state, to_state, event, samples, occurred_at
		FROM transitions
		WHERE run_id = ?
		ORDER BY transition_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var micros int64
		if err := rows.Scan(&t.ID, &t.RunID, &t.From, &t.To, &t.Event, &t.Samples, &micros); err != nil {
			return nil, err
		}
		t.OccurredAt = time.UnixMicro(micros)
		out = append(out, t)
	}
	return out, rows.Err()
}
