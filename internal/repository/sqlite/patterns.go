package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
	"github.com/JonnyWalker81/pulse/backend/internal/repository"
)

const patternColumns = `id, user_id, pattern_type, primary_metric, secondary_metric, correlation,
	time_relationship, triggers, success_rate, is_active, last_triggered, trigger_count,
	validation_status, discovered_at, last_validated, updated_at`

type patternRepository struct {
	db *sql.DB
}

func (r *patternRepository) Get(ctx context.Context, userID string, patternType models.PatternType) (*models.CorrelationPattern, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+patternColumns+` FROM correlation_patterns
		WHERE user_id = ? AND pattern_type = ?`, userID, string(patternType))
	return r.load(ctx, "get pattern", row)
}

func (r *patternRepository) GetByID(ctx context.Context, userID, id string) (*models.CorrelationPattern, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+patternColumns+` FROM correlation_patterns
		WHERE id = ? AND user_id = ?`, id, userID)
	return r.load(ctx, "get pattern by id", row)
}

func (r *patternRepository) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]models.CorrelationPattern, error) {
	query := `SELECT ` + patternColumns + ` FROM correlation_patterns WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY pattern_type ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, storageError("list patterns", err)
	}
	defer rows.Close()

	var patterns []models.CorrelationPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list patterns", err)
	}
	rows.Close()

	for i := range patterns {
		if patterns[i].Outcomes, err = r.outcomes(ctx, patterns[i].ID); err != nil {
			return nil, err
		}
	}

	return patterns, nil
}

// Upsert inserts a new pattern or, on (user_id, pattern_type) conflict,
// replaces only the correlation block and validation timestamps in one
// statement. Identity, thresholds, triggers and lifecycle state survive.
func (r *patternRepository) Upsert(ctx context.Context, pattern *models.CorrelationPattern) (*models.CorrelationPattern, error) {
	id := pattern.ID
	if id == "" {
		generated, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate pattern id: %w", err)
		}
		id = generated.String()
	}

	primary, err := json.Marshal(pattern.PrimaryMetric)
	if err != nil {
		return nil, err
	}
	secondary, err := json.Marshal(pattern.SecondaryMetric)
	if err != nil {
		return nil, err
	}
	correlation, err := json.Marshal(pattern.Correlation)
	if err != nil {
		return nil, err
	}
	relationship, err := json.Marshal(pattern.TimeRelationship)
	if err != nil {
		return nil, err
	}
	triggers, err := json.Marshal(pattern.Triggers)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO correlation_patterns (`+patternColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, pattern_type) DO UPDATE SET
			correlation    = excluded.correlation,
			last_validated = excluded.last_validated,
			updated_at     = excluded.updated_at
	`,
		id, pattern.UserID, string(pattern.PatternType), string(primary), string(secondary),
		string(correlation), string(relationship), string(triggers), pattern.SuccessRate,
		pattern.IsActive, formatNullTime(pattern.LastTriggered), pattern.TriggerCount,
		string(pattern.ValidationStatus), formatTime(pattern.DiscoveredAt),
		formatTime(pattern.LastValidated), formatTime(pattern.UpdatedAt),
	)
	if err != nil {
		return nil, storageError("upsert pattern", err)
	}

	return r.Get(ctx, pattern.UserID, pattern.PatternType)
}

func (r *patternRepository) UpdateTriggerState(ctx context.Context, id string, lastTriggered time.Time, triggerCount int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE correlation_patterns SET last_triggered = ?, trigger_count = ?, updated_at = ?
		WHERE id = ?
	`, formatTime(lastTriggered), triggerCount, formatTime(time.Now()), id)
	if err != nil {
		return storageError("update trigger state", err)
	}
	return requireRow(res)
}

func (r *patternRepository) AppendOutcome(ctx context.Context, id string, outcome models.PatternOutcome, successRate float64) error {
	return inTx(ctx, r.db, "append outcome", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE correlation_patterns SET success_rate = ?, updated_at = ? WHERE id = ?
		`, successRate, formatTime(time.Now()), id)
		if err != nil {
			return err
		}
		if err := requireRow(res); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO pattern_outcomes (pattern_id, date, predicted, actual, accuracy)
			VALUES (?, ?, ?, ?, ?)
		`, id, formatTime(outcome.Date), outcome.Predicted, outcome.Actual, outcome.Accuracy)
		return err
	})
}

func (r *patternRepository) UpdateStatus(ctx context.Context, id string, status models.ValidationStatus, isActive bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE correlation_patterns SET validation_status = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, string(status), isActive, formatTime(time.Now()), id)
	if err != nil {
		return storageError("update pattern status", err)
	}
	return requireRow(res)
}

func (r *patternRepository) load(ctx context.Context, op string, row *sql.Row) (*models.CorrelationPattern, error) {
	p, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, storageError(op, err)
	}

	if p.Outcomes, err = r.outcomes(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *patternRepository) outcomes(ctx context.Context, patternID string) ([]models.PatternOutcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, predicted, actual, accuracy FROM pattern_outcomes
		WHERE pattern_id = ? ORDER BY date ASC, rowid ASC
	`, patternID)
	if err != nil {
		return nil, storageError("list outcomes", err)
	}
	defer rows.Close()

	outcomes := []models.PatternOutcome{}
	for rows.Next() {
		var date string
		var o models.PatternOutcome
		if err := rows.Scan(&date, &o.Predicted, &o.Actual, &o.Accuracy); err != nil {
			return nil, storageError("scan outcome", err)
		}
		if o.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list outcomes", err)
	}
	return outcomes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPattern(s scanner) (*models.CorrelationPattern, error) {
	var (
		p                                                   models.CorrelationPattern
		patternType, status                                 string
		primary, secondary, correlation, relation, triggers string
		lastTriggered                                       sql.NullString
		discoveredAt, lastValidated, updatedAt              string
	)
	err := s.Scan(&p.ID, &p.UserID, &patternType, &primary, &secondary, &correlation,
		&relation, &triggers, &p.SuccessRate, &p.IsActive, &lastTriggered, &p.TriggerCount,
		&status, &discoveredAt, &lastValidated, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.PatternType = models.PatternType(patternType)
	p.ValidationStatus = models.ValidationStatus(status)

	for _, col := range []struct {
		raw string
		dst any
	}{
		{primary, &p.PrimaryMetric},
		{secondary, &p.SecondaryMetric},
		{correlation, &p.Correlation},
		{relation, &p.TimeRelationship},
		{triggers, &p.Triggers},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return nil, fmt.Errorf("failed to decode pattern %s: %w", p.ID, err)
		}
	}

	if p.LastTriggered, err = parseNullTime(lastTriggered); err != nil {
		return nil, err
	}
	if p.DiscoveredAt, err = parseTime(discoveredAt); err != nil {
		return nil, err
	}
	if p.LastValidated, err = parseTime(lastValidated); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
