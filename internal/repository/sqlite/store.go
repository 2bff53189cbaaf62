// Package sqlite is an embedded storage backend for the analytics repositories.
// It uses the pure-Go ncruces driver so the binary stays cgo-free.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/JonnyWalker81/pulse/backend/internal/repository"
)

// timeFormat sorts lexically in chronological order
const timeFormat = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS time_series_samples (
	user_id     TEXT NOT NULL,
	metric_name TEXT NOT NULL,
	timestamp   TEXT NOT NULL,
	value       REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_user_metric_ts
	ON time_series_samples (user_id, metric_name, timestamp);

CREATE TABLE IF NOT EXISTS raw_events (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	domain     TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time   TEXT,
	amount     REAL,
	category   TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_raw_events_user_domain_start
	ON raw_events (user_id, domain, start_time);

CREATE TABLE IF NOT EXISTS correlation_patterns (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	pattern_type      TEXT NOT NULL,
	primary_metric    TEXT NOT NULL,
	secondary_metric  TEXT NOT NULL,
	correlation       TEXT NOT NULL,
	time_relationship TEXT NOT NULL,
	triggers          TEXT NOT NULL,
	success_rate      REAL NOT NULL DEFAULT 0,
	is_active         INTEGER NOT NULL DEFAULT 1,
	last_triggered    TEXT,
	trigger_count     INTEGER NOT NULL DEFAULT 0,
	validation_status TEXT NOT NULL,
	discovered_at     TEXT NOT NULL,
	last_validated    TEXT NOT NULL,
	updated_at        TEXT NOT NULL,
	UNIQUE (user_id, pattern_type)
);

CREATE TABLE IF NOT EXISTS pattern_outcomes (
	pattern_id TEXT NOT NULL REFERENCES correlation_patterns(id),
	date       TEXT NOT NULL,
	predicted  REAL NOT NULL,
	actual     REAL NOT NULL,
	accuracy   REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pattern_outcomes_pattern
	ON pattern_outcomes (pattern_id, date);

CREATE TABLE IF NOT EXISTS predictions (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	prediction_type  TEXT NOT NULL,
	horizon_days     INTEGER NOT NULL,
	predicted_value  REAL NOT NULL,
	confidence_level REAL NOT NULL,
	prediction_model TEXT NOT NULL,
	factors          TEXT NOT NULL,
	prediction_date  TEXT NOT NULL,
	status           TEXT NOT NULL,
	actual_value     REAL,
	accuracy         REAL,
	completed_at     TEXT
);
`

// Store owns the database handle shared by the SQLite repositories
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and applies the schema
func New(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL lets readers proceed while a writer holds the lock
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// TimeSeries returns the time series repository view of the store
func (s *Store) TimeSeries() repository.TimeSeriesRepository {
	return &timeSeriesRepository{db: s.db}
}

// Patterns returns the pattern repository view of the store
func (s *Store) Patterns() repository.PatternRepository {
	return &patternRepository{db: s.db}
}

// Predictions returns the prediction repository view of the store
func (s *Store) Predictions() repository.PredictionRepository {
	return &predictionRepository{db: s.db}
}

// storageError marks lock contention as retryable on top of the generic
// classification
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sqlite3.BUSY) || errors.Is(err, sqlite3.LOCKED) {
		return &repository.StorageError{Op: op, Err: err, Temporary: true}
	}
	return repository.NewStorageError(op, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
