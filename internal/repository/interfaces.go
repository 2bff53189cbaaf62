package repository

import (
	"context"
	"time"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
)

// TimeSeriesRepository reads the samples and raw events produced by ingestion
type TimeSeriesRepository interface {
	// FetchSeries returns samples for metric in [start, end) ordered by timestamp
	FetchSeries(ctx context.Context, userID, metric string, start, end time.Time) ([]models.TimeSeriesSample, error)

	// FetchRawEvents returns raw events for domain starting in [start, end) ordered by start time
	FetchRawEvents(ctx context.Context, userID string, domain models.Domain, start, end time.Time) ([]models.RawEvent, error)
}

// PatternRepository persists correlation patterns. Rows are unique per
// (user_id, pattern_type) and are never deleted.
type PatternRepository interface {
	Get(ctx context.Context, userID string, patternType models.PatternType) (*models.CorrelationPattern, error)
	GetByID(ctx context.Context, userID, id string) (*models.CorrelationPattern, error)
	ListByUser(ctx context.Context, userID string, activeOnly bool) ([]models.CorrelationPattern, error)

	// Upsert writes the pattern keyed by (user_id, pattern_type). When the row
	// exists only the correlation block, last_validated and updated_at change.
	Upsert(ctx context.Context, pattern *models.CorrelationPattern) (*models.CorrelationPattern, error)

	UpdateTriggerState(ctx context.Context, id string, lastTriggered time.Time, triggerCount int) error

	// AppendOutcome adds to the outcome log and stores the recomputed success rate
	AppendOutcome(ctx context.Context, id string, outcome models.PatternOutcome, successRate float64) error

	UpdateStatus(ctx context.Context, id string, status models.ValidationStatus, isActive bool) error
}

// PredictionRepository persists predictions
type PredictionRepository interface {
	Create(ctx context.Context, prediction *models.Prediction) (*models.Prediction, error)
	GetByID(ctx context.Context, userID, id string) (*models.Prediction, error)

	// Complete records the outcome of a pending prediction. It returns
	// ErrNotPending when the prediction was already completed.
	Complete(ctx context.Context, prediction *models.Prediction) error
}
