package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
	"github.com/JonnyWalker81/pulse/backend/pkg/supabase"
)

type timeSeriesRepository struct {
	client *supabase.Client
}

// NewTimeSeriesRepository creates a time series repository backed by Supabase
func NewTimeSeriesRepository(client *supabase.Client) TimeSeriesRepository {
	return &timeSeriesRepository{client: client}
}

func (r *timeSeriesRepository) FetchSeries(ctx context.Context, userID, metric string, start, end time.Time) ([]models.TimeSeriesSample, error) {
	query := map[string]interface{}{
		"user_id":     fmt.Sprintf("eq.%s", userID),
		"metric_name": fmt.Sprintf("eq.%s", metric),
		"and":         fmt.Sprintf("(timestamp.gte.%s,timestamp.lt.%s)", start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)),
		"select":      "user_id,metric_name,timestamp,value",
		"order":       "timestamp.asc",
	}

	body, err := r.client.Query(ctx, "time_series_samples", query)
	if err != nil {
		return nil, NewStorageError("fetch series", err)
	}

	var samples []models.TimeSeriesSample
	if err := json.Unmarshal(body, &samples); err != nil {
		return nil, fmt.Errorf("failed to unmarshal samples: %w", err)
	}

	return samples, nil
}

func (r *timeSeriesRepository) FetchRawEvents(ctx context.Context, userID string, domain models.Domain, start, end time.Time) ([]models.RawEvent, error) {
	query := map[string]interface{}{
		"user_id": fmt.Sprintf("eq.%s", userID),
		"domain":  fmt.Sprintf("eq.%s", domain),
		"and":     fmt.Sprintf("(start_time.gte.%s,start_time.lt.%s)", start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)),
		"select":  "*",
		"order":   "start_time.asc",
	}

	body, err := r.client.Query(ctx, "raw_events", query)
	if err != nil {
		return nil, NewStorageError("fetch raw events", err)
	}

	var events []models.RawEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw events: %w", err)
	}

	return events, nil
}
