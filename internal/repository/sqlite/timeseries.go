package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
)

type timeSeriesRepository struct {
	db *sql.DB
}

func (r *timeSeriesRepository) FetchSeries(ctx context.Context, userID, metric string, start, end time.Time) ([]models.TimeSeriesSample, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT timestamp, value FROM time_series_samples
		WHERE user_id = ? AND metric_name = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC
	`, userID, metric, formatTime(start), formatTime(end))
	if err != nil {
		return nil, storageError("fetch series", err)
	}
	defer rows.Close()

	var samples []models.TimeSeriesSample
	for rows.Next() {
		var ts string
		sample := models.TimeSeriesSample{UserID: userID, MetricName: metric}
		if err := rows.Scan(&ts, &sample.Value); err != nil {
			return nil, storageError("scan sample", err)
		}
		if sample.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("fetch series", err)
	}

	return samples, nil
}

func (r *timeSeriesRepository) FetchRawEvents(ctx context.Context, userID string, domain models.Domain, start, end time.Time) ([]models.RawEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, start_time, end_time, amount, category, title FROM raw_events
		WHERE user_id = ? AND domain = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time ASC
	`, userID, string(domain), formatTime(start), formatTime(end))
	if err != nil {
		return nil, storageError("fetch raw events", err)
	}
	defer rows.Close()

	var events []models.RawEvent
	for rows.Next() {
		var (
			startTime string
			endTime   sql.NullString
			amount    sql.NullFloat64
		)
		event := models.RawEvent{UserID: userID, Domain: domain}
		if err := rows.Scan(&event.ID, &startTime, &endTime, &amount, &event.Category, &event.Title); err != nil {
			return nil, storageError("scan raw event", err)
		}
		if event.StartTime, err = parseTime(startTime); err != nil {
			return nil, err
		}
		if event.EndTime, err = parseNullTime(endTime); err != nil {
			return nil, err
		}
		event.Amount = floatPtr(amount)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("fetch raw events", err)
	}

	return events, nil
}

// AppendSamples stores samples in a single transaction
func (s *Store) AppendSamples(ctx context.Context, samples []models.TimeSeriesSample) error {
	return s.inTx(ctx, "append samples", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO time_series_samples (user_id, metric_name, timestamp, value)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, sample := range samples {
			if _, err := stmt.ExecContext(ctx, sample.UserID, sample.MetricName, formatTime(sample.Timestamp), sample.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendRawEvents stores raw events in a single transaction. Events without
// an ID get a UUIDv7.
func (s *Store) AppendRawEvents(ctx context.Context, events []models.RawEvent) error {
	return s.inTx(ctx, "append raw events", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO raw_events (id, user_id, domain, start_time, end_time, amount, category, title)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, event := range events {
			id := event.ID
			if id == "" {
				generated, err := uuid.NewV7()
				if err != nil {
					return fmt.Errorf("failed to generate event id: %w", err)
				}
				id = generated.String()
			}
			if _, err := stmt.ExecContext(ctx, id, event.UserID, string(event.Domain), formatTime(event.StartTime),
				formatNullTime(event.EndTime), nullFloat(event.Amount), event.Category, event.Title); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	return inTx(ctx, s.db, op, fn)
}

func inTx(ctx context.Context, db *sql.DB, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageError(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return storageError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storageError(op, err)
	}
	return nil
}
